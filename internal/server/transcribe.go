package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"

	"learninghelper/pkg/domain"
)

var allowedAudioExtensions = map[string]struct{}{
	".mp3": {},
	".wav": {},
	".m4a": {},
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.inference == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription service not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()
	ext := strings.ToLower(path.Ext(header.Filename))
	if _, ok := allowedAudioExtensions[ext]; !ok {
		writeError(w, http.StatusBadRequest, "audio must be mp3, wav, or m4a")
		return
	}
	language := r.FormValue("language")
	result, err := s.inference.TranscribeAudio(r.Context(), header.Filename, file, language)
	if err != nil {
		writeAppError(w, err)
		return
	}
	saved, err := s.app.SaveTranscription(user, result.Text, "audio", result.Language, r.FormValue("device"), map[string]string{
		"filename": header.Filename,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleTranscribeYouTube(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.inference == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription service not configured")
		return
	}
	var req struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	result, err := s.inference.TranscribeYouTube(r.Context(), req.URL, req.Language)
	if err != nil {
		writeAppError(w, err)
		return
	}
	saved, err := s.app.SaveTranscription(user, result.Text, "youtube", result.Language, "", map[string]string{
		"url": req.URL,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleTranscriptions(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.app.ListTranscriptions(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// handleAnalyze forwards a study analysis request to the inference
// service, passing the caller's bearer token through.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.inference == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis service not configured")
		return
	}
	var fields map[string]string
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, _ := bearerToken(r)
	raw, err := s.inference.Analyze(r.Context(), token, fields)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
