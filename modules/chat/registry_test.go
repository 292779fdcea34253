package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRegistry(t *testing.T, opts Options) (*Registry, *recordingObserver) {
	t.Helper()
	if opts.IdleRoomGrace == 0 {
		opts.IdleRoomGrace = time.Hour
	}
	reg := NewRegistry(opts, &mockLogger{})
	obs := newRecordingObserver()
	reg.SetObserver(obs)
	t.Cleanup(reg.Close)
	return reg, obs
}

func joinAs(t *testing.T, reg *Registry, roomID, name string) (*Connection, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(name)
	conn := reg.NewConnection(name, transport)
	require.NoError(t, reg.Join(context.Background(), roomID, conn))
	return conn, transport
}

func TestRegistry_CreateRoom(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{})

	room, err := reg.CreateRoom(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, DisplayName(room.ID), room.Name)
	assert.Zero(t, room.MemberCount)
	assert.False(t, room.CreatedAt.IsZero())
	assert.Equal(t, []string{room.ID}, obs.created)

	got, err := reg.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, got)
}

func TestRegistry_ListRoomsInCreationOrder(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})

	var want []string
	for i := 0; i < 5; i++ {
		room, err := reg.CreateRoom(context.Background())
		require.NoError(t, err)
		want = append(want, room.ID)
	}

	var got []string
	for _, room := range reg.ListRooms() {
		got = append(got, room.ID)
	}
	assert.Equal(t, want, got)
}

func TestRegistry_UnknownRoom(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	_, err := reg.GetRoom("missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = reg.Members("missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	conn := reg.NewConnection("alice", newFakeTransport("alice"))
	assert.ErrorIs(t, reg.Join(ctx, "missing", conn), domain.ErrRoomNotFound)
	assert.ErrorIs(t, reg.Broadcast(ctx, "missing", domain.NewUserMessage("u", "alice", "hi", time.Now())), domain.ErrRoomNotFound)

	assert.NotPanics(t, func() { reg.Leave(ctx, "missing", conn) })
}

func TestRegistry_AliceAndBob(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)

	alice, aliceT := joinAs(t, reg, room.ID, "alice")
	bob, bobT := joinAs(t, reg, room.ID, "bob")

	members, err := reg.Members(room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Member{alice.Member(), bob.Member()}, members)

	aliceT.push(t, "hi")
	msg, err := alice.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, reg.Broadcast(ctx, room.ID, msg))

	assert.Equal(t, []string{"alice joined", "bob joined", "hi"}, bodies(aliceT.received(t)))
	bobMsgs := bobT.received(t)
	assert.Equal(t, []string{"bob joined", "hi"}, bodies(bobMsgs))

	hi := bobMsgs[1]
	assert.Equal(t, domain.WireUserMessage, hi.MessageType)
	assert.Equal(t, "alice", hi.Username)
	assert.Equal(t, alice.ID(), hi.UserID)

	joined := bobMsgs[0]
	assert.Equal(t, domain.WireSystemMessage, joined.MessageType)
	assert.Equal(t, domain.WireUserJoined, joined.EventType)

	reg.Leave(ctx, room.ID, bob)
	assert.True(t, bob.Closed())

	aliceMsgs := aliceT.received(t)
	last := aliceMsgs[len(aliceMsgs)-1]
	assert.Equal(t, domain.WireSystemMessage, last.MessageType)
	assert.Equal(t, domain.WireUserLeft, last.EventType)
	assert.Contains(t, last.Message, "bob")

	reg.Leave(ctx, room.ID, alice)
	assert.Empty(t, reg.ListRooms())

	count, reason := obs.deletions(room.ID)
	assert.Equal(t, 1, count)
	assert.Equal(t, DeleteReasonEmpty, reason)
	assert.Equal(t, []string{"alice", "bob"}, obs.joined)
	assert.Equal(t, []string{"bob", "alice"}, obs.left)

	_, err = reg.GetRoom(room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRegistry_JoinDeletedRoom(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	alice, _ := joinAs(t, reg, room.ID, "alice")
	reg.Leave(ctx, room.ID, alice)

	late := reg.NewConnection("bob", newFakeTransport("bob"))
	assert.ErrorIs(t, reg.Join(ctx, room.ID, late), domain.ErrRoomNotFound)
}

func TestRegistry_ConnectionJoinsOneRoomOnly(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	first, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	second, err := reg.CreateRoom(ctx)
	require.NoError(t, err)

	conn, _ := joinAs(t, reg, first.ID, "alice")
	assert.ErrorIs(t, reg.Join(ctx, second.ID, conn), ErrAlreadyJoined)
	assert.ErrorIs(t, reg.Join(ctx, first.ID, conn), ErrAlreadyJoined)
	assert.Equal(t, first.ID, conn.RoomID())

	firstMembers, err := reg.Members(first.ID)
	require.NoError(t, err)
	assert.Len(t, firstMembers, 1)
	secondMembers, err := reg.Members(second.ID)
	require.NoError(t, err)
	assert.Empty(t, secondMembers)

	reg.Leave(ctx, first.ID, conn)
	assert.Empty(t, conn.RoomID())
}

func TestRegistry_FailedJoinReleasesConnection(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	transport := newFakeTransport("alice")
	transport.acceptErr = errors.New("handshake aborted")
	conn := reg.NewConnection("alice", transport)

	require.Error(t, reg.Join(ctx, room.ID, conn))
	assert.Empty(t, conn.RoomID())
}

func TestRegistry_LeaveTwiceIsNoop(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	alice, _ := joinAs(t, reg, room.ID, "alice")
	_, bobT := joinAs(t, reg, room.ID, "bob")

	reg.Leave(ctx, room.ID, alice)
	reg.Leave(ctx, room.ID, alice)

	assert.Equal(t, []string{"alice"}, obs.left)
	assert.Equal(t, []string{"bob joined", "alice left"}, bodies(bobT.received(t)))

	got, err := reg.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MemberCount)
}

func TestRegistry_MemberCountTracksJoinsAndLeaves(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)

	// Keep one anchor so the room survives the random walk.
	joinAs(t, reg, room.ID, "anchor")

	rng := rand.New(rand.NewPCG(1, 2))
	var live []*Connection
	joins, leaves := 1, 0
	for i := 0; i < 200; i++ {
		if len(live) == 0 || rng.IntN(2) == 0 {
			conn, _ := joinAs(t, reg, room.ID, fmt.Sprintf("user-%d", i))
			live = append(live, conn)
			joins++
		} else {
			idx := rng.IntN(len(live))
			reg.Leave(ctx, room.ID, live[idx])
			live = append(live[:idx], live[idx+1:]...)
			leaves++
		}

		got, err := reg.GetRoom(room.ID)
		require.NoError(t, err)
		require.Equal(t, joins-leaves, got.MemberCount)
	}
}

func TestRegistry_BroadcastRegistrationOrder(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)

	log := &deliveryLog{}
	names := []string{"carol", "alice", "bob", "dave"}
	for _, name := range names {
		transport := newFakeTransport(name)
		require.NoError(t, reg.Join(ctx, room.ID, reg.NewConnection(name, transport)))
		transport.log = log
	}

	before := len(log.snapshot())
	require.NoError(t, reg.Broadcast(ctx, room.ID, domain.NewUserMessage("x", "carol", "ping", time.Now())))
	assert.Equal(t, names, log.snapshot()[before:])
	assert.Equal(t, 1, obs.messages)

	_, lateT := joinAs(t, reg, room.ID, "eve")
	assert.NotContains(t, bodies(lateT.received(t)), "ping")
}

func TestRegistry_BroadcastReapsFailedMembers(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	_, aliceT := joinAs(t, reg, room.ID, "alice")
	bob, bobT := joinAs(t, reg, room.ID, "bob")
	_, carolT := joinAs(t, reg, room.ID, "carol")

	bobT.failWrites(errBrokenPipe)
	require.NoError(t, reg.Broadcast(ctx, room.ID, domain.NewUserMessage("x", "alice", "hello", time.Now())))

	assert.Contains(t, bodies(carolT.received(t)), "hello")
	assert.Contains(t, bodies(aliceT.received(t)), "bob left")
	assert.True(t, bob.Closed())
	assert.Equal(t, []string{"bob"}, obs.left)

	members, err := reg.Members(room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRegistry_JoinFailsWhenNewMemberUnreachable(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	_, aliceT := joinAs(t, reg, room.ID, "alice")

	bobT := newFakeTransport("bob")
	bobT.failWrites(errBrokenPipe)
	err = reg.Join(ctx, room.ID, reg.NewConnection("bob", bobT))
	assert.ErrorIs(t, err, errBrokenPipe)

	members, err := reg.Members(room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, []string{"alice joined", "bob joined", "bob left"}, bodies(aliceT.received(t)))
}

func TestRegistry_IdleSweep(t *testing.T) {
	reg, obs := newTestRegistry(t, Options{IdleRoomGrace: 20 * time.Millisecond})
	ctx := context.Background()

	idle, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	busy, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	joinAs(t, reg, busy.ID, "alice")

	require.Eventually(t, func() bool {
		_, err := reg.GetRoom(idle.ID)
		return errors.Is(err, domain.ErrRoomNotFound)
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	rooms := reg.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, busy.ID, rooms[0].ID)

	count, reason := obs.deletions(idle.ID)
	assert.Equal(t, 1, count)
	assert.Equal(t, DeleteReasonIdle, reason)
}

func TestRegistry_ConcurrentLeavesDeleteOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		reg, obs := newTestRegistry(t, Options{})
		ctx := context.Background()

		room, err := reg.CreateRoom(ctx)
		require.NoError(t, err)

		conns := make([]*Connection, 32)
		for i := range conns {
			conns[i], _ = joinAs(t, reg, room.ID, fmt.Sprintf("user-%d", i))
		}

		var g errgroup.Group
		for _, conn := range conns {
			g.Go(func() error {
				reg.Leave(ctx, room.ID, conn)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		count, reason := obs.deletions(room.ID)
		require.Equal(t, 1, count, "round %d", round)
		assert.Equal(t, DeleteReasonEmpty, reason)
		assert.Empty(t, reg.ListRooms())
	}
}

func TestRegistry_ConcurrentJoinAndBroadcast(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	joinAs(t, reg, room.ID, "anchor")

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			conn := reg.NewConnection(fmt.Sprintf("user-%d", i), newFakeTransport("u"))
			if err := reg.Join(ctx, room.ID, conn); err != nil {
				return err
			}
			return reg.Broadcast(ctx, room.ID, domain.NewUserMessage(conn.ID(), conn.Username(), "hey", time.Now()))
		})
	}
	require.NoError(t, g.Wait())

	got, err := reg.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, got.MemberCount)
	assert.Equal(t, Stats{Rooms: 1, Connections: 17}, reg.Stats())
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry(Options{}, &mockLogger{})
	obs := newRecordingObserver()
	reg.SetObserver(obs)
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx)
	require.NoError(t, err)
	alice, _ := joinAs(t, reg, room.ID, "alice")

	reg.Close()
	reg.Close()

	assert.True(t, alice.Closed())
	assert.Empty(t, reg.ListRooms())
	count, reason := obs.deletions(room.ID)
	assert.Equal(t, 1, count)
	assert.Equal(t, DeleteReasonShutdown, reason)

	_, err = reg.CreateRoom(ctx)
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "00000000-0000-0000-0000-0000000004d2", want: "room 1234"},
		{id: "00000000-0000-0000-0000-000000002710", want: "room 0"},
		{id: "00000000-0000-0000-0000-00000000271f", want: "room 15"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.id))
			assert.Equal(t, DisplayName(tt.id), DisplayName(tt.id))
		})
	}
}
