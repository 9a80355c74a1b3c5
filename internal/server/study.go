package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"learninghelper/pkg/domain"
)

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		subjects, err := s.app.ListSubjects(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": subjects, "count": len(subjects)})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		subject, err := s.app.CreateSubject(user, req.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, subject)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStudyRecords(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.app.ListStudyRecords(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": records, "count": len(records)})
	case http.MethodPost:
		var req struct {
			SubjectID       string `json:"subjectId"`
			DurationMinutes int    `json:"durationMinutes"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		record, err := s.app.CreateStudyRecord(user, req.SubjectID, req.DurationMinutes)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	default:
		methodNotAllowed(w)
	}
}

type scheduleRequest struct {
	SubjectID string    `json:"subjectId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Note      string    `json:"note"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		day := strings.TrimSpace(r.URL.Query().Get("date"))
		if day == "" {
			day = time.Now().UTC().Format("2006-01-02")
		}
		entries, err := s.app.ListSchedule(user, day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": entries, "count": len(entries)})
	case http.MethodPost:
		var req scheduleRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.app.CreateScheduleEntry(user, req.SubjectID, req.StartTime, req.EndTime, req.Note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleScheduleByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/schedule/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req scheduleRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.app.UpdateScheduleEntry(user, id, req.SubjectID, req.StartTime, req.EndTime, req.Note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.app.DeleteScheduleEntry(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
