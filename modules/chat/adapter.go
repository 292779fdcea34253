package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the room operations other modules may call.
type ChatPort interface {
	CreateRoom(ctx context.Context) (domain.RoomSummary, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error)
	GetRoomMembers(ctx context.Context, roomID string) ([]domain.Member, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// CreateRoom creates a new chat room.
func (a *ChatAdapter) CreateRoom(ctx context.Context) (domain.RoomSummary, error) {
	req := CreateRoomRequest{}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.RoomSummary{}, fmt.Errorf("failed to create room: %w", err)
	}
	return resp.Room, nil
}

// ListRooms returns all active rooms.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom retrieves a room by ID. It returns domain.ErrRoomNotFound when the
// room does not exist.
func (a *ChatAdapter) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.RoomSummary{}, fmt.Errorf("failed to get room: %w", err)
	}
	if !resp.Found {
		return domain.RoomSummary{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	return resp.Room, nil
}

// GetRoomMembers returns all members in a room.
func (a *ChatAdapter) GetRoomMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	req := GetRoomMembersRequest{RoomID: roomID}
	var resp GetRoomMembersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoomMembers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get room members: %w", err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	return resp.Members, nil
}
