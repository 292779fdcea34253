package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptedConnection(t *testing.T, name string, maxHistory int) (*Connection, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(name)
	conn := NewConnection(name, transport, nil, maxHistory)
	require.NoError(t, conn.Accept(context.Background()))
	return conn, transport
}

func TestConnection_HistoryEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	conn, _ := acceptedConnection(t, "alice", 3)

	for i := 1; i <= 7; i++ {
		msg := domain.NewUserMessage(conn.ID(), "alice", fmt.Sprintf("m%d", i), time.Now())
		require.NoError(t, conn.Send(ctx, msg))
		assert.LessOrEqual(t, len(conn.History()), 3)
	}

	history := conn.History()
	got := make([]string, len(history))
	for i, msg := range history {
		got[i] = msg.Body()
	}
	assert.Equal(t, []string{"m5", "m6", "m7"}, got)
}

func TestConnection_SystemMessagesNotRecorded(t *testing.T) {
	ctx := context.Background()
	conn, transport := acceptedConnection(t, "alice", 5)

	require.NoError(t, conn.Send(ctx, domain.NewSystemMessage("bob joined", domain.EventJoined, time.Now())))
	assert.Empty(t, conn.History())
	assert.Len(t, transport.received(t), 1)
}

func TestConnection_HistoryKeepsOnlyOwnMessages(t *testing.T) {
	ctx := context.Background()
	conn, transport := acceptedConnection(t, "alice", 5)

	require.NoError(t, conn.Send(ctx, domain.NewUserMessage("someone-else", "bob", "I hate everything", time.Now())))
	require.NoError(t, conn.Send(ctx, domain.NewUserMessage(conn.ID(), "alice", "lovely day", time.Now())))

	assert.Len(t, transport.received(t), 2)
	history := conn.History()
	require.Len(t, history, 1)
	assert.Equal(t, "lovely day", history[0].Body())
}

func TestConnection_HistoryIsSnapshot(t *testing.T) {
	ctx := context.Background()
	conn, _ := acceptedConnection(t, "alice", 5)
	require.NoError(t, conn.Send(ctx, domain.NewUserMessage(conn.ID(), "alice", "first", time.Now())))

	snapshot := conn.History()
	require.NoError(t, conn.Send(ctx, domain.NewUserMessage(conn.ID(), "alice", "second", time.Now())))

	assert.Len(t, snapshot, 1)
	assert.Len(t, conn.History(), 2)
}

func TestConnection_SendBeforeAccept(t *testing.T) {
	conn := NewConnection("alice", newFakeTransport("alice"), nil, 5)

	err := conn.Send(context.Background(), domain.NewUserMessage("u1", "alice", "hi", time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotAccepted)
}

func TestConnection_AcceptFailure(t *testing.T) {
	transport := newFakeTransport("alice")
	transport.acceptErr = errors.New("handshake aborted")
	conn := NewConnection("alice", transport, nil, 5)

	err := conn.Accept(context.Background())
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "accept", terr.Op)
}

func TestConnection_SendBrokenPipe(t *testing.T) {
	conn, transport := acceptedConnection(t, "alice", 5)
	transport.failWrites(errBrokenPipe)

	err := conn.Send(context.Background(), domain.NewUserMessage("u1", "alice", "hi", time.Now()))
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, errBrokenPipe)
	assert.Empty(t, conn.History())
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn, transport := acceptedConnection(t, "alice", 5)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, transport.closeCount())
	assert.True(t, conn.Closed())

	err := conn.Send(context.Background(), domain.NewUserMessage("u1", "alice", "hi", time.Now()))
	assert.ErrorIs(t, err, domain.ErrTransportClosed)
}

func TestConnection_Receive(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantBody  string
		wantError error
	}{
		{
			name:     "valid frame",
			frame:    `{"username":"mallory","message":"hello"}`,
			wantBody: "hello",
		},
		{
			name:      "invalid json",
			frame:     `{"message":`,
			wantError: domain.ErrMalformedMessage,
		},
		{
			name:      "empty body",
			frame:     `{"message":""}`,
			wantError: domain.ErrMalformedMessage,
		},
		{
			name:      "unknown message type",
			frame:     `{"message":"hi","message_type":"SHOUT"}`,
			wantError: domain.ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, transport := acceptedConnection(t, "alice", 5)
			transport.inbox <- []byte(tt.frame)

			msg, err := conn.Receive(context.Background())
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.NotErrorIs(t, err, domain.ErrTransportClosed)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, msg.Body())
			assert.Equal(t, "alice", msg.Username())
			assert.Equal(t, conn.ID(), msg.UserID())
			assert.Equal(t, domain.KindUser, msg.Kind())
			assert.False(t, msg.SentAt().IsZero())
		})
	}
}

func TestConnection_CloseUnblocksReceive(t *testing.T) {
	conn, _ := acceptedConnection(t, "alice", 5)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive(context.Background())
		errCh <- err
	}()

	require.NoError(t, conn.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrTransportClosed)
		assert.NotErrorIs(t, err, domain.ErrMalformedMessage)
	case <-time.After(time.Second):
		t.Fatal("Receive() did not return after Close()")
	}
}

func TestConnection_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		conn := NewConnection("alice", newFakeTransport("alice"), nil, 5)
		if seen[conn.ID()] {
			t.Fatalf("duplicate connection id %q", conn.ID())
		}
		seen[conn.ID()] = true
	}
}
