package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	gonanoid "github.com/jaevor/go-nanoid"
)

// Transport is the duplex channel behind a Connection. ReadFrame must return
// an error once Close has been called.
type Transport interface {
	Accept(ctx context.Context) error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

var newConnectionID = func() func() string {
	gen, err := gonanoid.Standard(21)
	if err != nil {
		panic(fmt.Sprintf("chat: connection id generator: %v", err))
	}
	return gen
}()

// Connection is one client's session in a room. It keeps a rolling window of
// the most recent messages its own user sent.
type Connection struct {
	id         string
	username   string
	transport  Transport
	codec      domain.Codec
	maxHistory int
	now        func() time.Time

	accepted  atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	writeMu sync.Mutex

	roomMu sync.Mutex
	roomID string

	histMu  sync.RWMutex
	history []domain.Message
}

// NewConnection wraps transport for username. maxHistory bounds the rolling
// window; codec defaults to JSON.
func NewConnection(username string, transport Transport, codec domain.Codec, maxHistory int) *Connection {
	if codec == nil {
		codec = domain.JSONCodec{}
	}
	if maxHistory <= 0 {
		maxHistory = DefaultOptions().MaxHistory
	}
	return &Connection{
		id:         newConnectionID(),
		username:   username,
		transport:  transport,
		codec:      codec,
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// Username returns the name the client joined with.
func (c *Connection) Username() string {
	return c.username
}

// Member returns the public identity of the connection.
func (c *Connection) Member() domain.Member {
	return domain.Member{ID: c.id, Username: c.username}
}

// Accept completes the transport handshake. Calling it again is a no-op.
func (c *Connection) Accept(ctx context.Context) error {
	if c.closed.Load() {
		return domain.NewTransportError("accept", domain.ErrTransportClosed, true)
	}
	if c.accepted.Load() {
		return nil
	}
	if err := c.transport.Accept(ctx); err != nil {
		return domain.NewTransportError("accept", err, errors.Is(err, domain.ErrTransportClosed))
	}
	c.accepted.Store(true)
	return nil
}

// Send writes msg to the client. User messages authored by this connection
// are recorded in the history once written.
func (c *Connection) Send(ctx context.Context, msg domain.Message) error {
	if c.closed.Load() {
		return domain.NewTransportError("write", domain.ErrTransportClosed, true)
	}
	if !c.accepted.Load() {
		return domain.ErrNotAccepted
	}

	frame, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	err = c.transport.WriteFrame(ctx, frame)
	c.writeMu.Unlock()
	if err != nil {
		closed := c.closed.Load() || errors.Is(err, domain.ErrTransportClosed)
		return domain.NewTransportError("write", err, closed)
	}

	if msg.Kind() == domain.KindUser && msg.UserID() == c.id {
		c.record(msg)
	}
	return nil
}

// Receive blocks until the client sends a frame and returns it as a user
// message stamped with this connection's identity. Read failures match
// domain.ErrTransportClosed; undecodable or invalid frames match
// domain.ErrMalformedMessage.
func (c *Connection) Receive(ctx context.Context) (domain.Message, error) {
	if c.closed.Load() {
		return domain.Message{}, domain.NewTransportError("read", domain.ErrTransportClosed, true)
	}
	if !c.accepted.Load() {
		return domain.Message{}, domain.ErrNotAccepted
	}

	frame, err := c.transport.ReadFrame(ctx)
	if err != nil {
		return domain.Message{}, domain.NewTransportError("read", err, true)
	}

	in, err := c.codec.Decode(frame)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedMessage) {
			err = fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
		}
		return domain.Message{}, err
	}
	if err := ValidateMessage(in.Body()); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
	}

	return domain.NewUserMessage(c.id, c.username, in.Body(), c.now()), nil
}

// RoomID returns the room the connection is a member of, or "".
func (c *Connection) RoomID() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

// claim binds the connection to roomID. It fails when the connection already
// belongs to a room.
func (c *Connection) claim(roomID string) bool {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	if c.roomID != "" {
		return false
	}
	c.roomID = roomID
	return true
}

// release unbinds the connection if it is bound to roomID.
func (c *Connection) release(roomID string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	if c.roomID == roomID {
		c.roomID = ""
	}
}

// Close releases the transport. Only the first call reaches the transport.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.transport.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// History returns a copy of the rolling window, oldest first.
func (c *Connection) History() []domain.Message {
	c.histMu.RLock()
	defer c.histMu.RUnlock()

	out := make([]domain.Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Connection) record(msg domain.Message) {
	c.histMu.Lock()
	defer c.histMu.Unlock()

	c.history = append(c.history, msg)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
}
