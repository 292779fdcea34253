package chat

import (
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/example/mood-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// eventPublisher turns registry activity into chat events on the EventBus.
// Publishing is best-effort; failures are logged and dropped.
type eventPublisher struct {
	bus    mono.EventBus
	logger types.Logger
}

var _ Observer = (*eventPublisher)(nil)

func newEventPublisher(bus mono.EventBus, logger types.Logger) *eventPublisher {
	return &eventPublisher{bus: bus, logger: logger}
}

func (p *eventPublisher) warn(event string, err error) {
	if err != nil {
		p.logger.Warn("Failed to publish event", "event", event, "error", err)
	}
}

func (p *eventPublisher) RoomCreated(room domain.RoomSummary) {
	p.warn("RoomCreated", events.RoomCreatedV1.Publish(p.bus, events.RoomCreatedEvent{
		RoomID:    room.ID,
		RoomName:  room.Name,
		Timestamp: room.CreatedAt,
	}, nil))
}

func (p *eventPublisher) RoomDeleted(roomID, reason string) {
	p.warn("RoomDeleted", events.RoomDeletedV1.Publish(p.bus, events.RoomDeletedEvent{
		RoomID:    roomID,
		Reason:    reason,
		Timestamp: time.Now(),
	}, nil))
}

func (p *eventPublisher) UserJoined(roomID string, member domain.Member) {
	p.warn("UserJoined", events.UserJoinedV1.Publish(p.bus, events.UserJoinedEvent{
		RoomID:    roomID,
		UserID:    member.ID,
		Username:  member.Username,
		Timestamp: time.Now(),
	}, nil))
}

func (p *eventPublisher) UserLeft(roomID string, member domain.Member) {
	p.warn("UserLeft", events.UserLeftV1.Publish(p.bus, events.UserLeftEvent{
		RoomID:    roomID,
		UserID:    member.ID,
		Username:  member.Username,
		Timestamp: time.Now(),
	}, nil))
}

func (p *eventPublisher) MessageBroadcast(roomID string, msg domain.Message, delivered int) {
	p.warn("MessageSent", events.MessageSentV1.Publish(p.bus, events.MessageSentEvent{
		RoomID:     roomID,
		UserID:     msg.UserID(),
		Username:   msg.Username(),
		Length:     len(msg.Body()),
		Recipients: delivered,
		Timestamp:  msg.SentAt(),
	}, nil))
}

func (p *eventPublisher) MoodAnnounced(roomID string, member domain.Member, label string) {
	p.warn("MoodAnnounced", events.MoodAnnouncedV1.Publish(p.bus, events.MoodAnnouncedEvent{
		RoomID:    roomID,
		UserID:    member.ID,
		Username:  member.Username,
		Label:     label,
		Timestamp: time.Now(),
	}, nil))
}
