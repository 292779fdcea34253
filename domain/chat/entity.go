package chat

import "time"

// Kind distinguishes messages typed by users from messages produced by the server.
type Kind int

const (
	KindUser Kind = iota
	KindSystem
)

func (k Kind) String() string {
	if k == KindSystem {
		return "SYSTEM"
	}
	return "USER"
}

// Event tags system messages that announce a membership change.
type Event int

const (
	EventNone Event = iota
	EventJoined
	EventLeft
)

func (e Event) String() string {
	switch e {
	case EventJoined:
		return "JOINED"
	case EventLeft:
		return "LEFT"
	default:
		return ""
	}
}

// SystemUsername is the sender name carried by server-generated messages.
const SystemUsername = "System"

// Message is an immutable chat message. Build it with NewUserMessage or
// NewSystemMessage; the zero value is not meaningful.
type Message struct {
	userID   string
	username string
	body     string
	kind     Kind
	event    Event
	sentAt   time.Time
}

// NewUserMessage builds a USER message sent by the given connection.
func NewUserMessage(userID, username, body string, sentAt time.Time) Message {
	return Message{
		userID:   userID,
		username: username,
		body:     body,
		kind:     KindUser,
		sentAt:   sentAt,
	}
}

// NewSystemMessage builds a SYSTEM message, optionally tagged with an event.
func NewSystemMessage(body string, event Event, sentAt time.Time) Message {
	return Message{
		username: SystemUsername,
		body:     body,
		kind:     KindSystem,
		event:    event,
		sentAt:   sentAt,
	}
}

func (m Message) UserID() string { return m.userID }
func (m Message) Username() string { return m.username }
func (m Message) Body() string { return m.body }
func (m Message) Kind() Kind { return m.kind }
func (m Message) Event() Event { return m.event }
func (m Message) SentAt() time.Time { return m.sentAt }
func (m Message) IsSystem() bool { return m.kind == KindSystem }
func (m Message) HasEvent() bool { return m.event != EventNone }

// RoomSummary is a point-in-time view of a room.
type RoomSummary struct {
	ID          string    `json:"room_id"`
	Name        string    `json:"room_name"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member identifies one live connection in a room.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
