package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"learninghelper/pkg/domain"
)

type createRoomRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		rooms, err := s.app.ListRooms()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rooms, "count": len(rooms)})
	case http.MethodPost:
		var req createRoomRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		room, err := s.app.CreateRoom(user, req.Name, req.Status)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCurrentRoom(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	room, ok, err := s.app.CurrentRoom(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"room": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": room})
}

func (s *Server) handleJoinedRooms(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rooms, err := s.app.ListJoinedRooms(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rooms, "count": len(rooms)})
}

func (s *Server) handleCreatedRooms(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rooms, err := s.app.ListCreatedRooms(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rooms, "count": len(rooms)})
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	roomID, err := s.app.LeaveRoom(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"roomId": roomID})
}

// handleRoomByID covers POST /rooms/{id}/join and DELETE /rooms/{id}.
func (s *Server) handleRoomByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/rooms/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/join"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		room, err := s.app.JoinRoom(user.ID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
		return
	}
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteRoom(user, rest); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "room_delete", "success", "room_id", rest, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}
