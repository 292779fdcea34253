package chat

import (
	"errors"
	"time"
	"unicode/utf8"

	domain "github.com/example/mood-chat/domain/chat"
)

// Validation constants
const (
	MaxUsernameLength = 50
	MaxMessageLength  = 5000
)

// Validation errors
var (
	ErrUsernameEmpty   = errors.New("username cannot be empty")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
	ErrRegistryClosed  = errors.New("room registry closed")
	ErrAlreadyJoined   = errors.New("connection already joined a room")
)

// Service names registered by the chat module.
const (
	ServiceCreateRoom     = "create-room"
	ServiceListRooms      = "list-rooms"
	ServiceGetRoom        = "get-room"
	ServiceGetRoomMembers = "room-members"
)

// Room deletion reasons reported to observers.
const (
	DeleteReasonIdle     = "idle"
	DeleteReasonEmpty    = "empty"
	DeleteReasonShutdown = "shutdown"
)

// MoodPrompt is broadcast when the sampled member has not said anything yet.
const MoodPrompt = "try sending a message"

// Options configures a Registry.
type Options struct {
	MaxHistory     int
	IdleRoomGrace  time.Duration
	MoodInterval   time.Duration
	MoodSampleSize int
}

// DefaultOptions returns the stock registry settings.
func DefaultOptions() Options {
	return Options{
		MaxHistory:     20,
		IdleRoomGrace:  10 * time.Second,
		MoodInterval:   20 * time.Second,
		MoodSampleSize: 10,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxHistory <= 0 {
		o.MaxHistory = def.MaxHistory
	}
	if o.IdleRoomGrace <= 0 {
		o.IdleRoomGrace = def.IdleRoomGrace
	}
	if o.MoodInterval <= 0 {
		o.MoodInterval = def.MoodInterval
	}
	if o.MoodSampleSize <= 0 {
		o.MoodSampleSize = def.MoodSampleSize
	}
	return o
}

// Stats is a registry-wide snapshot used for health reporting.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// CreateRoomRequest is the request for the create-room service.
type CreateRoomRequest struct{}

// CreateRoomResponse is the response for the create-room service.
type CreateRoomResponse struct {
	Room domain.RoomSummary `json:"room"`
}

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for the list-rooms service.
type ListRoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

// GetRoomRequest is the request for the get-room service.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomResponse is the response for the get-room service. Found is false
// when the room does not exist.
type GetRoomResponse struct {
	Room  domain.RoomSummary `json:"room"`
	Found bool               `json:"found"`
}

// GetRoomMembersRequest is the request for the room-members service.
type GetRoomMembersRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomMembersResponse is the response for the room-members service.
type GetRoomMembersResponse struct {
	RoomID  string          `json:"room_id"`
	Members []domain.Member `json:"members"`
	Found   bool            `json:"found"`
}

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidateMessage validates a message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}
