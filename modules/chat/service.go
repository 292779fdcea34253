package chat

import (
	"context"
	"errors"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/go-monolith/mono"
)

// Request-reply handlers. A missing room is reported through Found rather
// than an error so callers can map it to a 404.

func (m *Module) createRoom(ctx context.Context, _ CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, err := m.registry.CreateRoom(ctx)
	if err != nil {
		return CreateRoomResponse{}, err
	}
	return CreateRoomResponse{Room: room}, nil
}

func (m *Module) listRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	return ListRoomsResponse{Rooms: m.registry.ListRooms()}, nil
}

func (m *Module) getRoom(_ context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	room, err := m.registry.GetRoom(req.RoomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return GetRoomResponse{Found: false}, nil
	}
	if err != nil {
		return GetRoomResponse{}, err
	}
	return GetRoomResponse{Room: room, Found: true}, nil
}

func (m *Module) getRoomMembers(_ context.Context, req GetRoomMembersRequest, _ *mono.Msg) (GetRoomMembersResponse, error) {
	members, err := m.registry.Members(req.RoomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return GetRoomMembersResponse{RoomID: req.RoomID, Found: false}, nil
	}
	if err != nil {
		return GetRoomMembersResponse{}, err
	}
	return GetRoomMembersResponse{RoomID: req.RoomID, Members: members, Found: true}, nil
}
