package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when a new room is created.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomDeletedEvent is emitted when a room is removed. Reason is one of
// "idle", "empty" or "shutdown".
type RoomDeletedEvent struct {
	RoomID    string    `json:"room_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection joins a room.
type UserJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection leaves a room.
type UserLeftEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted when a user message is broadcast to a room.
type MessageSentEvent struct {
	RoomID     string    `json:"room_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Length     int       `json:"length"`
	Recipients int       `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}

// MoodAnnouncedEvent is emitted when the mood loop announces a label.
type MoodAnnouncedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)

	RoomDeletedV1 = helper.EventDefinition[RoomDeletedEvent](
		"chat",
		"RoomDeleted",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"chat",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"chat",
		"UserLeft",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	MoodAnnouncedV1 = helper.EventDefinition[MoodAnnouncedEvent](
		"chat",
		"MoodAnnounced",
		"v1",
	)
)
