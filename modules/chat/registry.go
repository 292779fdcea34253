package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Classifier maps a piece of chat text to a mood label.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Observer is notified of registry activity. Calls are made outside of any
// registry or room lock.
type Observer interface {
	RoomCreated(room domain.RoomSummary)
	RoomDeleted(roomID, reason string)
	UserJoined(roomID string, member domain.Member)
	UserLeft(roomID string, member domain.Member)
	MessageBroadcast(roomID string, msg domain.Message, delivered int)
	MoodAnnounced(roomID string, member domain.Member, label string)
}

type nopObserver struct{}

func (nopObserver) RoomCreated(domain.RoomSummary) {}
func (nopObserver) RoomDeleted(string, string) {}
func (nopObserver) UserJoined(string, domain.Member) {}
func (nopObserver) UserLeft(string, domain.Member) {}
func (nopObserver) MessageBroadcast(string, domain.Message, int) {}
func (nopObserver) MoodAnnounced(string, domain.Member, string) {}

// Registry owns every room of the process. The registry lock guards the room
// map only and is never held while a room lock is taken.
type Registry struct {
	opts   Options
	logger types.Logger
	now    func() time.Time
	pick   func(n int) int

	mu         sync.RWMutex
	rooms      map[string]*Room
	sweeps     map[string]*time.Timer
	seq        uint64
	closed     bool
	classifier Classifier
	observer   Observer
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options, logger types.Logger) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
		pick:     rand.IntN,
		rooms:    make(map[string]*Room),
		sweeps:   make(map[string]*time.Timer),
		observer: nopObserver{},
	}
}

// SetClassifier sets the classifier used by the mood tick.
func (r *Registry) SetClassifier(c Classifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier = c
}

// SetObserver replaces the activity observer. A nil observer disables notifications.
func (r *Registry) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Options returns the effective registry settings.
func (r *Registry) Options() Options {
	return r.opts
}

// NewConnection builds a connection sized for this registry.
func (r *Registry) NewConnection(username string, transport Transport) *Connection {
	return NewConnection(username, transport, domain.JSONCodec{}, r.opts.MaxHistory)
}

func (r *Registry) notify() Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observer
}

// CreateRoom registers a new empty room and schedules its idle sweep.
func (r *Registry) CreateRoom(_ context.Context) (domain.RoomSummary, error) {
	id := uuid.NewString()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.RoomSummary{}, ErrRegistryClosed
	}
	r.seq++
	room := newRoom(id, r.seq, r.now)
	r.rooms[id] = room
	r.sweeps[id] = time.AfterFunc(r.opts.IdleRoomGrace, func() { r.sweepIdle(id) })
	observer := r.observer
	r.mu.Unlock()

	summary, _ := room.summary()
	observer.RoomCreated(summary)
	r.logger.Info("Room created", "roomID", id, "name", room.Name())
	return summary, nil
}

func (r *Registry) lookup(roomID string) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()

	if !ok || room.deleted() {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	return room, nil
}

// GetRoom returns a summary of an active room.
func (r *Registry) GetRoom(roomID string) (domain.RoomSummary, error) {
	room, err := r.lookup(roomID)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	summary, ok := room.summary()
	if !ok {
		return domain.RoomSummary{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	return summary, nil
}

// ListRooms returns the active rooms in creation order.
func (r *Registry) ListRooms() []domain.RoomSummary {
	rooms := r.activeRooms()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if summary, ok := room.summary(); ok {
			out = append(out, summary)
		}
	}
	return out
}

// Members lists the connections of a room in registration order.
func (r *Registry) Members(roomID string) ([]domain.Member, error) {
	room, err := r.lookup(roomID)
	if err != nil {
		return nil, err
	}
	members, ok := room.memberList()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	return members, nil
}

// Stats counts active rooms and their connections.
func (r *Registry) Stats() Stats {
	var stats Stats
	for _, room := range r.activeRooms() {
		if summary, ok := room.summary(); ok {
			stats.Rooms++
			stats.Connections += summary.MemberCount
		}
	}
	return stats
}

func (r *Registry) activeRooms() []*Room {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return rooms
}

// Join accepts conn and registers it in the room. It is the only way a
// connection enters a room, and a connection belongs to at most one room.
func (r *Registry) Join(ctx context.Context, roomID string, conn *Connection) error {
	room, err := r.lookup(roomID)
	if err != nil {
		return err
	}
	if !conn.claim(roomID) {
		return fmt.Errorf("%w: %s is in room %s", ErrAlreadyJoined, conn.ID(), conn.RoomID())
	}
	if err := conn.Accept(ctx); err != nil {
		conn.release(roomID)
		return err
	}

	failed, err := room.connect(ctx, conn)
	if err != nil {
		conn.release(roomID)
		return err
	}
	r.notify().UserJoined(roomID, conn.Member())
	r.logger.Info("User joined room", "roomID", roomID, "connID", conn.ID(), "username", conn.Username())

	var joinErr error
	for _, f := range failed {
		if f.conn == conn {
			joinErr = f.err
		}
	}
	r.reap(ctx, room, failed)
	return joinErr
}

// Leave removes conn from the room and closes it. Unknown rooms and
// non-members are ignored.
func (r *Registry) Leave(ctx context.Context, roomID string, conn *Connection) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	r.leave(ctx, room, conn)
}

func (r *Registry) leave(ctx context.Context, room *Room, conn *Connection) {
	removed, emptied, failed := room.disconnect(ctx, conn)
	if !removed {
		return
	}
	conn.release(room.ID())
	if err := conn.Close(); err != nil {
		r.logger.Debug("Close after leave failed", "connID", conn.ID(), "error", err)
	}
	r.notify().UserLeft(room.ID(), conn.Member())
	r.logger.Info("User left room", "roomID", room.ID(), "connID", conn.ID(), "username", conn.Username())

	if emptied {
		r.remove(room, DeleteReasonEmpty)
	}
	r.reap(ctx, room, failed)
}

// reap runs the leave sequence for members the room could not write to.
func (r *Registry) reap(ctx context.Context, room *Room, failed []delivery) {
	for _, f := range failed {
		r.logger.Warn("Dropping unreachable connection",
			"roomID", room.ID(),
			"connID", f.conn.ID(),
			"error", f.err)
		r.leave(ctx, room, f.conn)
		_ = f.conn.Close()
	}
}

// Broadcast sends a user message to every member of the room.
func (r *Registry) Broadcast(ctx context.Context, roomID string, msg domain.Message) error {
	room, err := r.lookup(roomID)
	if err != nil {
		return err
	}
	delivered, failed, err := room.broadcast(ctx, msg)
	if err != nil {
		return err
	}
	r.notify().MessageBroadcast(roomID, msg, delivered)
	r.reap(ctx, room, failed)
	return nil
}

// remove drops a DELETED room from the map. Only the caller that actually
// removes the entry reports the deletion.
func (r *Registry) remove(room *Room, reason string) {
	r.mu.Lock()
	current, ok := r.rooms[room.ID()]
	if !ok || current != room {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, room.ID())
	if timer, ok := r.sweeps[room.ID()]; ok {
		timer.Stop()
		delete(r.sweeps, room.ID())
	}
	observer := r.observer
	r.mu.Unlock()

	observer.RoomDeleted(room.ID(), reason)
	r.logger.Info("Room deleted", "roomID", room.ID(), "reason", reason)
}

func (r *Registry) sweepIdle(roomID string) {
	r.mu.Lock()
	delete(r.sweeps, roomID)
	room, ok := r.rooms[roomID]
	r.mu.Unlock()

	if !ok || !room.deleteIfEmpty() {
		return
	}
	r.remove(room, DeleteReasonIdle)
}

// MoodTick samples one member of every occupied room and announces a mood
// for it. A failure in one room never stops the others.
func (r *Registry) MoodTick(ctx context.Context) {
	for _, room := range r.activeRooms() {
		if ctx.Err() != nil {
			return
		}
		r.announceMood(ctx, room)
	}
}

func (r *Registry) announceMood(ctx context.Context, room *Room) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Mood announcement panicked", "roomID", room.ID(), "panic", rec)
		}
	}()

	conn := room.pickMember(r.pick)
	if conn == nil {
		return
	}

	body := MoodPrompt
	label := ""
	if history := conn.History(); len(history) > 0 {
		r.mu.RLock()
		classifier := r.classifier
		r.mu.RUnlock()
		if classifier == nil {
			r.logger.Warn("Mood skipped, no classifier configured", "roomID", room.ID())
			return
		}

		var err error
		label, err = classifier.Classify(ctx, r.sampleText(history))
		if err != nil {
			r.logger.Warn("Mood classification failed",
				"roomID", room.ID(),
				"connID", conn.ID(),
				"error", errors.Join(domain.ErrClassifier, err))
			return
		}
		body = fmt.Sprintf("%s's mood: %s", conn.Username(), label)
	}

	failed, err := room.announce(ctx, body)
	if err != nil {
		return
	}
	if label != "" {
		r.notify().MoodAnnounced(room.ID(), conn.Member(), label)
	}
	r.reap(ctx, room, failed)
}

// sampleText joins the newest MoodSampleSize bodies, oldest first.
func (r *Registry) sampleText(history []domain.Message) string {
	if len(history) > r.opts.MoodSampleSize {
		history = history[len(history)-r.opts.MoodSampleSize:]
	}
	bodies := make([]string, len(history))
	for i, msg := range history {
		bodies[i] = msg.Body()
	}
	return strings.Join(bodies, " ")
}

// Run drives the mood tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.MoodInterval)
	defer ticker.Stop()

	r.logger.Info("Mood loop started", "interval", r.opts.MoodInterval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Mood loop stopped")
			return
		case <-ticker.C:
			r.MoodTick(ctx)
		}
	}
}

// Close deletes every room, closes the remaining connections and rejects
// further room creation.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, timer := range r.sweeps {
		timer.Stop()
		delete(r.sweeps, id)
	}
	rooms := make([]*Room, 0, len(r.rooms))
	for id, room := range r.rooms {
		rooms = append(rooms, room)
		delete(r.rooms, id)
	}
	observer := r.observer
	r.mu.Unlock()

	for _, room := range rooms {
		for _, conn := range room.shutdown() {
			_ = conn.Close()
		}
		observer.RoomDeleted(room.ID(), DeleteReasonShutdown)
	}
	r.logger.Info("Room registry closed", "rooms", len(rooms))
}
