package server

import (
	"net/http"
	"testing"

	"learninghelper/pkg/domain"
	"learninghelper/pkg/store"
)

func (e *testEnv) createRoom(t *testing.T, token, name string) domain.Room {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/rooms", token, map[string]string{
		"name":   name,
		"status": "studying",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room status %d", resp.StatusCode)
	}
	return decodeBody[domain.Room](t, resp)
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	creator, creatorToken := env.registerAndLogin(t, "alice")
	_, memberToken := env.registerAndLogin(t, "bob")

	room := env.createRoom(t, creatorToken, "math cram session")
	if room.CreatorID != creator.ID || room.CreatorName != creator.Name {
		t.Fatalf("unexpected creator on room %+v", room)
	}

	// Creating a room puts the creator in it.
	resp := env.do(t, http.MethodGet, "/rooms/current", creatorToken, nil)
	current := decodeBody[struct {
		Room *domain.Room `json:"room"`
	}](t, resp)
	if current.Room == nil || current.Room.ID != room.ID {
		t.Fatalf("creator not in new room: %+v", current.Room)
	}

	resp = env.do(t, http.MethodPost, "/rooms/"+room.ID+"/join", memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/rooms/joined", memberToken, nil)
	joined := decodeBody[struct {
		Items []domain.Room `json:"items"`
		Count int           `json:"count"`
	}](t, resp)
	if joined.Count != 1 || joined.Items[0].ID != room.ID {
		t.Fatalf("unexpected joined rooms %+v", joined)
	}

	resp = env.do(t, http.MethodPost, "/rooms/leave", memberToken, nil)
	left := decodeBody[map[string]string](t, resp)
	if left["roomId"] != room.ID {
		t.Fatalf("left wrong room: %+v", left)
	}

	// Leaving with no membership is 404.
	resp = env.do(t, http.MethodPost, "/rooms/leave", memberToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second leave, got %d", resp.StatusCode)
	}
}

func TestDeleteRoomAuthorization(t *testing.T) {
	env := newTestEnv(t, nil)
	_, creatorToken := env.registerAndLogin(t, "alice")
	_, otherToken := env.registerAndLogin(t, "bob")

	room := env.createRoom(t, creatorToken, "history review")

	resp := env.do(t, http.MethodDelete, "/rooms/"+room.ID, otherToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/rooms/"+room.ID, creatorToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for creator, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/rooms/"+room.ID, creatorToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestJoinUnknownRoomIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/rooms/nope/join", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestJoinLostRaceIsConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	_, creatorToken := env.registerAndLogin(t, "alice")
	_, joinerToken := env.registerAndLogin(t, "bob")

	room := env.createRoom(t, creatorToken, "physics lab")

	// Simulate another request inserting bob's membership between the
	// cleanup delete and the insert.
	env.store.FailOp = func(op string) error {
		if op == "InsertMembership" {
			return store.ErrDuplicateKey
		}
		return nil
	}
	defer func() { env.store.FailOp = nil }()

	resp := env.do(t, http.MethodPost, "/rooms/"+room.ID+"/join", joinerToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCreateRoomValidationOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/rooms", token, map[string]string{"status": "studying"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/rooms", "", map[string]string{"name": "x", "status": "y"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}
