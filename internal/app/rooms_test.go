package app

import (
	"errors"
	"fmt"
	"testing"

	"learninghelper/pkg/store"
)

func TestCreateRoomMovesCreatorIn(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	room, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.CreatorID != alice.ID || room.CreatorName != alice.Name {
		t.Fatalf("unexpected creator fields: %+v", room)
	}
	if room.Status != "open" {
		t.Fatalf("status not stored verbatim: %q", room.Status)
	}

	current, ok, err := a.CurrentRoom(alice.ID)
	if err != nil || !ok {
		t.Fatalf("current room: ok=%v err=%v", ok, err)
	}
	if current.ID != room.ID {
		t.Fatalf("expected creator to be in the new room")
	}
}

func TestCreatingSecondRoomLeavesTheFirst(t *testing.T) {
	a, memStore, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	math, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create math: %v", err)
	}
	history, err := a.CreateRoom(alice, "History Study", "open")
	if err != nil {
		t.Fatalf("create history: %v", err)
	}

	current, ok, err := a.CurrentRoom(alice.ID)
	if err != nil || !ok {
		t.Fatalf("current room: ok=%v err=%v", ok, err)
	}
	if current.ID != history.ID {
		t.Fatalf("expected current room to be history, got %q", current.Name)
	}
	memberships, err := memStore.MembershipsForUser(alice.ID)
	if err != nil {
		t.Fatalf("memberships: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("expected exactly one membership, got %d", len(memberships))
	}

	// The abandoned room survives; only its membership is gone.
	if _, ok, _ := a.store.GetRoom(math.ID); !ok {
		t.Fatalf("expected math room to still exist")
	}
}

func TestJoinRoomSwitchesRooms(t *testing.T) {
	a, memStore, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	math, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create math: %v", err)
	}
	history, err := a.CreateRoom(bob, "History Study", "open")
	if err != nil {
		t.Fatalf("create history: %v", err)
	}

	carol := registerUser(t, a, "carol")
	if _, err := a.JoinRoom(carol.ID, math.ID); err != nil {
		t.Fatalf("join math: %v", err)
	}
	if _, err := a.JoinRoom(carol.ID, history.ID); err != nil {
		t.Fatalf("join history: %v", err)
	}

	current, ok, err := a.CurrentRoom(carol.ID)
	if err != nil || !ok {
		t.Fatalf("current room: ok=%v err=%v", ok, err)
	}
	if current.ID != history.ID {
		t.Fatalf("expected history, got %q", current.Name)
	}
	memberships, _ := memStore.MembershipsForUser(carol.ID)
	if len(memberships) != 1 {
		t.Fatalf("expected one membership, got %d", len(memberships))
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	if _, err := a.JoinRoom(alice.ID, "missing-room"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinRoomLostRaceIsConflict(t *testing.T) {
	a, memStore, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	math, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create math: %v", err)
	}

	// Another join for the same user lands between the delete and the
	// insert; the membership insert then hits the uniqueness constraint.
	memStore.FailOp = func(op string) error {
		if op == "InsertMembership" {
			return store.ErrDuplicateKey
		}
		return nil
	}
	_, err = a.JoinRoom(bob.ID, math.ID)
	memStore.FailOp = nil
	if !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("expected ErrAlreadyInRoom, got %v", err)
	}
}

func TestCreateRoomRollsBackOnStoreFault(t *testing.T) {
	a, memStore, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	boom := fmt.Errorf("disk on fire")
	memStore.FailOp = func(op string) error {
		if op == "InsertMembership" {
			return boom
		}
		return nil
	}
	_, err := a.CreateRoom(alice, "Math Study", "open")
	memStore.FailOp = nil
	if !errors.Is(err, boom) {
		t.Fatalf("expected store fault to surface, got %v", err)
	}

	// Nothing from the failed transaction may be visible.
	rooms, err := a.ListRooms()
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected no rooms after rollback, got %d", len(rooms))
	}
	if _, ok, _ := a.CurrentRoom(alice.ID); ok {
		t.Fatalf("expected no membership after rollback")
	}
}

func TestCreateRoomValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	if _, err := a.CreateRoom(alice, "   ", "open"); !errors.Is(err, ErrRoomNameRequired) {
		t.Fatalf("expected ErrRoomNameRequired, got %v", err)
	}
	if _, err := a.CreateRoom(alice, "Math Study", ""); !errors.Is(err, ErrRoomStatusRequired) {
		t.Fatalf("expected ErrRoomStatusRequired, got %v", err)
	}
}

func TestLeaveRoomThenLeaveAgain(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")

	room, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	left, err := a.LeaveRoom(alice.ID)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left != room.ID {
		t.Fatalf("expected to leave %q, left %q", room.ID, left)
	}
	if _, err := a.LeaveRoom(alice.ID); !errors.Is(err, ErrNotInAnyRoom) {
		t.Fatalf("expected ErrNotInAnyRoom on second leave, got %v", err)
	}

	// Leaving does not delete the room itself.
	if _, ok, _ := a.store.GetRoom(room.ID); !ok {
		t.Fatalf("expected room to survive leave")
	}
}

func TestDeleteRoomCascadesMemberships(t *testing.T) {
	a, memStore, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	room, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := a.JoinRoom(bob.ID, room.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := a.DeleteRoom(alice, room.ID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, ok, _ := a.store.GetRoom(room.ID); ok {
		t.Fatalf("expected room to be gone")
	}
	for _, u := range []string{alice.ID, bob.ID} {
		memberships, _ := memStore.MembershipsForUser(u)
		if len(memberships) != 0 {
			t.Fatalf("expected memberships for %s to be cascaded away", u)
		}
	}
}

func TestDeleteRoomRequiresCreator(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	room, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := a.DeleteRoom(bob, room.ID); !errors.Is(err, ErrNotRoomCreator) {
		t.Fatalf("expected ErrNotRoomCreator, got %v", err)
	}
	if _, ok, _ := a.store.GetRoom(room.ID); !ok {
		t.Fatalf("expected room to survive unauthorized delete")
	}
	if err := a.DeleteRoom(alice, "missing-room"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomListings(t *testing.T) {
	a, _, _ := newTestApp(t)
	alice := registerUser(t, a, "alice")
	bob := registerUser(t, a, "bob")

	math, err := a.CreateRoom(alice, "Math Study", "open")
	if err != nil {
		t.Fatalf("create math: %v", err)
	}
	history, err := a.CreateRoom(bob, "History Study", "open")
	if err != nil {
		t.Fatalf("create history: %v", err)
	}

	all, err := a.ListRooms()
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(all))
	}

	created, err := a.ListCreatedRooms(alice.ID)
	if err != nil {
		t.Fatalf("list created: %v", err)
	}
	if len(created) != 1 || created[0].ID != math.ID {
		t.Fatalf("unexpected created rooms: %+v", created)
	}

	joined, err := a.ListJoinedRooms(bob.ID)
	if err != nil {
		t.Fatalf("list joined: %v", err)
	}
	if len(joined) != 1 || joined[0].ID != history.ID {
		t.Fatalf("unexpected joined rooms: %+v", joined)
	}
}
