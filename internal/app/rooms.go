package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
	"learninghelper/pkg/store"
)

// A user is in at most one room at a time. Every write path deletes the
// user's memberships before inserting a new one, and the primary key on
// room_members.user_id backstops that cleanup when two writers race.

// CreateRoom creates a room and moves the creator into it, atomically.
func (a *App) CreateRoom(creator domain.User, name, status string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, ErrRoomNameRequired
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return domain.Room{}, ErrRoomStatusRequired
	}
	room := domain.Room{
		ID:          util.NewID(),
		Name:        name,
		CreatorID:   creator.ID,
		CreatorName: creator.Name,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	err := a.store.RoomTx(func(tx store.RoomStore) error {
		created, err := tx.InsertRoom(room)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		room = created
		if err := tx.DeleteMembershipsForUser(creator.ID); err != nil {
			return fmt.Errorf("clear memberships: %w", err)
		}
		if err := tx.InsertMembership(room.ID, creator.ID); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.Room{}, ErrAlreadyInRoom
		}
		return domain.Room{}, err
	}
	slog.Info("room_created", "room_id", room.ID, "creator_id", creator.ID)
	return room, nil
}

// JoinRoom moves the user into the room, leaving any previous room. A
// duplicate-key conflict means another join for the same user landed
// first; it is reported as ErrAlreadyInRoom and leaves that other
// membership intact.
func (a *App) JoinRoom(userID, roomID string) (domain.Room, error) {
	room, ok, err := a.store.GetRoom(roomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("fetch room: %w", err)
	}
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	err = a.store.RoomTx(func(tx store.RoomStore) error {
		if err := tx.DeleteMembershipsForUser(userID); err != nil {
			return fmt.Errorf("clear memberships: %w", err)
		}
		if err := tx.InsertMembership(roomID, userID); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.Room{}, ErrAlreadyInRoom
		}
		return domain.Room{}, err
	}
	return room, nil
}

// LeaveRoom removes the user's most recent membership and returns the
// room ID that was left. Leaving twice yields ErrNotInAnyRoom the second
// time.
func (a *App) LeaveRoom(userID string) (string, error) {
	memberships, err := a.store.MembershipsForUser(userID)
	if err != nil {
		return "", fmt.Errorf("fetch memberships: %w", err)
	}
	if len(memberships) == 0 {
		return "", ErrNotInAnyRoom
	}
	latest := memberships[0]
	if err := a.store.DeleteMembership(latest.RoomID, userID); err != nil {
		return "", fmt.Errorf("delete membership: %w", err)
	}
	return latest.RoomID, nil
}

// DeleteRoom removes a room and all of its memberships. Only the creator
// may delete it.
func (a *App) DeleteRoom(user domain.User, roomID string) error {
	room, ok, err := a.store.GetRoom(roomID)
	if err != nil {
		return fmt.Errorf("fetch room: %w", err)
	}
	if !ok {
		return ErrRoomNotFound
	}
	if room.CreatorID != user.ID {
		return ErrNotRoomCreator
	}
	err = a.store.RoomTx(func(tx store.RoomStore) error {
		if err := tx.DeleteMembershipsInRoom(roomID); err != nil {
			return fmt.Errorf("delete room memberships: %w", err)
		}
		if err := tx.DeleteRoom(roomID); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("room_deleted", "room_id", roomID, "creator_id", user.ID)
	return nil
}

// CurrentRoom returns the room the user is in, if any.
func (a *App) CurrentRoom(userID string) (domain.Room, bool, error) {
	return a.store.CurrentRoomFor(userID)
}

// ListRooms returns all rooms, newest first.
func (a *App) ListRooms() ([]domain.Room, error) {
	return a.store.ListRooms()
}

// ListJoinedRooms returns the rooms the user belongs to.
func (a *App) ListJoinedRooms(userID string) ([]domain.Room, error) {
	return a.store.RoomsJoinedBy(userID)
}

// ListCreatedRooms returns the rooms the user created.
func (a *App) ListCreatedRooms(userID string) ([]domain.Room, error) {
	return a.store.ListRoomsByCreator(userID)
}
