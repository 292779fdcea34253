package api

import domain "github.com/example/mood-chat/domain/chat"

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	ChatRooms []domain.RoomSummary `json:"chat_rooms"`
	Total     int                  `json:"total"`
}

// RoomMembersResponse is the API response for a room's members.
type RoomMembersResponse struct {
	RoomID  string          `json:"room_id"`
	Members []domain.Member `json:"members"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
