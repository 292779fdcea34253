package api

import (
	"errors"
	"log"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/example/mood-chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	if m.metricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.metricsHandler))
	}

	// REST API v1
	api := app.Group("/api/v1/chat")

	// Room management
	api.Get("/rooms", m.listRooms)
	api.Post("/rooms/new", m.roomCreateLimiter(), m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/rooms/:id/members", m.getRoomMembers)

	// WebSocket endpoint
	api.Get("/:id/connect/:username", m.upgradeCheck, websocket.New(m.handleWebSocket))
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	stats := m.registry.Stats()
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":      "api",
			"rooms":       stats.Rooms,
			"connections": stats.Connections,
		},
	})
}

// listRooms handles GET /api/v1/chat/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		log.Printf("[api] List rooms failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	if rooms == nil {
		rooms = []domain.RoomSummary{}
	}

	return c.JSON(RoomListResponse{
		ChatRooms: rooms,
		Total:     len(rooms),
	})
}

// createRoom handles POST /api/v1/chat/rooms/new.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	room, err := m.chatAdapter.CreateRoom(c.UserContext())
	if err != nil {
		log.Printf("[api] Create room failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// getRoom handles GET /api/v1/chat/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	room, err := m.chatAdapter.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return roomLookupError(c, err)
	}
	return c.JSON(room)
}

// getRoomMembers handles GET /api/v1/chat/rooms/:id/members.
func (m *APIModule) getRoomMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")
	members, err := m.chatAdapter.GetRoomMembers(c.UserContext(), roomID)
	if err != nil {
		return roomLookupError(c, err)
	}
	if members == nil {
		members = []domain.Member{}
	}

	return c.JSON(RoomMembersResponse{
		RoomID:  roomID,
		Members: members,
	})
}

func roomLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}
	log.Printf("[api] Room lookup failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "lookup_failed",
		Message: "Failed to look up room",
	})
}

// upgradeCheck rejects WebSocket requests for unknown rooms or bad usernames
// before the upgrade.
func (m *APIModule) upgradeCheck(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if _, err := m.registry.GetRoom(c.Params("id")); err != nil {
		return roomLookupError(c, err)
	}

	if err := chat.ValidateUsername(c.Params("username")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	return c.Next()
}
