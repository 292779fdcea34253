package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any) {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) With(args ...any) types.Logger { return m }
func (m *mockLogger) WithError(err error) types.Logger { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// deliveryLog records which transport received each frame, across transports.
type deliveryLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *deliveryLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, name)
}

func (l *deliveryLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// fakeTransport is an in-memory Transport.
type fakeTransport struct {
	name string
	log  *deliveryLog

	mu        sync.Mutex
	frames    [][]byte
	writeErr  error
	acceptErr error
	closes    int

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{
		name:  name,
		inbox: make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func (f *fakeTransport) Accept(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acceptErr
}

func (f *fakeTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.inbox:
		return frame, nil
	case <-f.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) WriteFrame(_ context.Context, frame []byte) error {
	select {
	case <-f.done:
		return domain.ErrTransportClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, frame)
	if f.log != nil {
		f.log.add(f.name)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTransport) push(t *testing.T, body string) {
	t.Helper()
	frame, err := json.Marshal(map[string]string{"username": f.name, "message": body})
	require.NoError(t, err)
	f.inbox <- frame
}

func (f *fakeTransport) received(t *testing.T) []domain.WireMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.WireMessage, 0, len(f.frames))
	for _, frame := range f.frames {
		var w domain.WireMessage
		require.NoError(t, json.Unmarshal(frame, &w))
		out = append(out, w)
	}
	return out
}

func bodies(msgs []domain.WireMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Message
	}
	return out
}

// stubClassifier returns label for any text, err when set, and panics on panicOn.
type stubClassifier struct {
	mu      sync.Mutex
	calls   []string
	label   string
	err     error
	panicOn string
}

func (s *stubClassifier) Classify(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	if s.panicOn != "" && text == s.panicOn {
		panic("classifier exploded")
	}
	if s.err != nil {
		return "", s.err
	}
	return s.label, nil
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// recordingObserver counts registry notifications.
type recordingObserver struct {
	mu       sync.Mutex
	created  []string
	deleted  map[string]int
	reasons  map[string]string
	joined   []string
	left     []string
	messages int
	moods    []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		deleted: make(map[string]int),
		reasons: make(map[string]string),
	}
}

func (o *recordingObserver) RoomCreated(room domain.RoomSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, room.ID)
}

func (o *recordingObserver) RoomDeleted(roomID, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted[roomID]++
	o.reasons[roomID] = reason
}

func (o *recordingObserver) UserJoined(_ string, member domain.Member) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, member.Username)
}

func (o *recordingObserver) UserLeft(_ string, member domain.Member) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, member.Username)
}

func (o *recordingObserver) MessageBroadcast(string, domain.Message, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages++
}

func (o *recordingObserver) MoodAnnounced(_ string, _ domain.Member, label string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.moods = append(o.moods, label)
}

func (o *recordingObserver) deletions(roomID string) (int, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deleted[roomID], o.reasons[roomID]
}

var errBrokenPipe = errors.New("broken pipe")
