package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/example/mood-chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"
)

// maxFrameBytes bounds an inbound frame: the longest valid message plus room
// for the JSON envelope.
const maxFrameBytes = chat.MaxMessageLength + 1024

// wsTransport adapts an upgraded Fiber WebSocket to chat.Transport. The
// underlying conn is released when the handler returns, so no write may reach
// it after Close.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

// Accept is a no-op: Fiber has completed the handshake before the handler runs.
func (t *wsTransport) Accept(_ context.Context) error {
	return nil
}

func (t *wsTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	_, frame, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (t *wsTransport) WriteFrame(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domain.ErrTransportClosed
	}

	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// handleWebSocket runs one client session: join, relay until the client goes
// away, leave.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	roomID := c.Params("id")
	username := c.Params("username")
	ctx := m.ctx
	c.SetReadLimit(maxFrameBytes)

	conn := m.registry.NewConnection(username, newWSTransport(c, m.cfg.WriteTimeout))
	defer func() {
		m.registry.Leave(context.Background(), roomID, conn)
		_ = conn.Close()
		log.Printf("[api] WebSocket client disconnected: %s (%s) from room %s", conn.ID(), username, roomID)
	}()

	if err := m.registry.Join(ctx, roomID, conn); err != nil {
		log.Printf("[api] Join failed for %s in room %s: %v", username, roomID, err)
		return
	}
	log.Printf("[api] WebSocket client connected: %s (%s) to room %s", conn.ID(), username, roomID)

	limiter := rate.NewLimiter(rate.Limit(m.cfg.MessagesPerSecond), m.cfg.MessageBurst)
	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMalformedMessage):
				log.Printf("[api] Dropping %s: %v", conn.ID(), err)
			case websocket.IsCloseError(errors.Unwrap(err), websocket.CloseGoingAway, websocket.CloseNormalClosure):
				log.Printf("[api] Client %s closed connection", conn.ID())
			default:
				log.Printf("[api] Read error from %s: %v", conn.ID(), err)
			}
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		if err := m.registry.Broadcast(ctx, roomID, msg); err != nil {
			log.Printf("[api] Broadcast to room %s failed: %v", roomID, err)
			return
		}
	}
}
