package chat

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/google/uuid"
)

type roomState int

const (
	roomActive roomState = iota
	roomDeleted
)

// delivery records a member the room failed to write to.
type delivery struct {
	conn *Connection
	err  error
}

// Room is one broadcast domain. connect, disconnect and broadcast are
// serialized by mu; a DELETED room rejects every further change.
type Room struct {
	id        string
	name      string
	seq       uint64
	createdAt time.Time
	now       func() time.Time

	mu      sync.Mutex
	state   roomState
	members *connectionSet
}

func newRoom(id string, seq uint64, now func() time.Time) *Room {
	return &Room{
		id:        id,
		name:      DisplayName(id),
		seq:       seq,
		createdAt: now(),
		now:       now,
		state:     roomActive,
		members:   newConnectionSet(),
	}
}

// DisplayName derives the short room label from its UUID: the id read as a
// 128-bit integer, modulo 10000.
func DisplayName(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return "room " + id
	}
	n := new(big.Int).SetBytes(u[:])
	return fmt.Sprintf("room %d", n.Mod(n, big.NewInt(10000)))
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Name returns the display name.
func (r *Room) Name() string {
	return r.name
}

func (r *Room) systemMessage(body string, event domain.Event) domain.Message {
	return domain.NewSystemMessage(body, event, r.now())
}

// connect registers conn and announces it to every member, conn included.
func (r *Room) connect(ctx context.Context, conn *Connection) ([]delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, r.id)
	}
	if !r.members.add(conn) {
		return nil, nil
	}
	msg := r.systemMessage(fmt.Sprintf("%s joined", conn.Username()), domain.EventJoined)
	return r.fanOut(ctx, msg), nil
}

// disconnect removes conn. When the room empties it becomes DELETED in the
// same critical section and emptied is true; otherwise the remaining members
// are told that conn left.
func (r *Room) disconnect(ctx context.Context, conn *Connection) (removed, emptied bool, failed []delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted || !r.members.remove(conn) {
		return false, false, nil
	}
	if r.members.len() == 0 {
		r.state = roomDeleted
		return true, true, nil
	}
	msg := r.systemMessage(fmt.Sprintf("%s left", conn.Username()), domain.EventLeft)
	return true, false, r.fanOut(ctx, msg)
}

// broadcast delivers msg to the current members in registration order.
func (r *Room) broadcast(ctx context.Context, msg domain.Message) (delivered int, failed []delivery, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted {
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, r.id)
	}
	failed = r.fanOut(ctx, msg)
	return r.members.len() - len(failed), failed, nil
}

// announce broadcasts an untagged system message.
func (r *Room) announce(ctx context.Context, body string) ([]delivery, error) {
	_, failed, err := r.broadcast(ctx, r.systemMessage(body, domain.EventNone))
	return failed, err
}

func (r *Room) fanOut(ctx context.Context, msg domain.Message) []delivery {
	var failed []delivery
	for _, conn := range r.members.snapshot() {
		if err := conn.Send(ctx, msg); err != nil {
			failed = append(failed, delivery{conn: conn, err: err})
		}
	}
	return failed
}

// deleteIfEmpty moves an ACTIVE room without members to DELETED.
func (r *Room) deleteIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != roomActive || r.members.len() > 0 {
		return false
	}
	r.state = roomDeleted
	return true
}

// shutdown marks the room DELETED and hands back any remaining members.
func (r *Room) shutdown() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = roomDeleted
	return r.members.clear()
}

func (r *Room) deleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == roomDeleted
}

func (r *Room) summary() (domain.RoomSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted {
		return domain.RoomSummary{}, false
	}
	return domain.RoomSummary{
		ID:          r.id,
		Name:        r.name,
		MemberCount: r.members.len(),
		CreatedAt:   r.createdAt,
	}, true
}

func (r *Room) memberList() ([]domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted {
		return nil, false
	}
	members := make([]domain.Member, 0, r.members.len())
	for _, conn := range r.members.snapshot() {
		members = append(members, conn.Member())
	}
	return members, true
}

func (r *Room) pickMember(pick func(n int) int) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == roomDeleted {
		return nil
	}
	return r.members.random(pick)
}
