package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"learninghelper/internal/app"
	"learninghelper/internal/inference"
	"learninghelper/internal/ratelimit"
	"learninghelper/internal/util"
	"learninghelper/pkg/auth"
	"learninghelper/pkg/domain"
)

const defaultMaxUploadBytes = 25 * 1024 * 1024

// Config wires required dependencies for the HTTP server.
type Config struct {
	App       *app.App
	Inference *inference.Client

	MaxUploadBytes    int64
	CORSAllowedOrigin string
	TrustedProxies    *util.TrustedProxies

	LoginLimiter  *ratelimit.FixedWindowLimiter
	SignupLimiter *ratelimit.FixedWindowLimiter
	ResetLimiter  *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP API.
type Server struct {
	app       *app.App
	inference *inference.Client

	maxUploadBytes int64
	corsOrigin     string
	trusted        *util.TrustedProxies

	loginLimiter  *ratelimit.FixedWindowLimiter
	signupLimiter *ratelimit.FixedWindowLimiter
	resetLimiter  *ratelimit.FixedWindowLimiter

	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		inference:      cfg.Inference,
		maxUploadBytes: maxUpload,
		corsOrigin:     cfg.CORSAllowedOrigin,
		trusted:        cfg.TrustedProxies,
		loginLimiter:   cfg.LoginLimiter,
		signupLimiter:  cfg.SignupLimiter,
		resetLimiter:   cfg.ResetLimiter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithRequestLog(s.trusted, handler)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.corsOrigin, handler)
	handler = util.WithSecurityHeaders(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/auth/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("/auth/reset-password", s.handleResetPassword)

	// profile
	s.mux.Handle("/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/profile/avatar", s.authenticated(s.handleAvatar))

	// study data
	s.mux.Handle("/subjects", s.authenticated(s.handleSubjects))
	s.mux.Handle("/study-records", s.authenticated(s.handleStudyRecords))
	s.mux.Handle("/schedule", s.authenticated(s.handleSchedule))
	s.mux.Handle("/schedule/", s.authenticated(s.handleScheduleByID))

	// rooms
	s.mux.Handle("/rooms", s.authenticated(s.handleRooms))
	s.mux.Handle("/rooms/current", s.authenticated(s.handleCurrentRoom))
	s.mux.Handle("/rooms/joined", s.authenticated(s.handleJoinedRooms))
	s.mux.Handle("/rooms/created", s.authenticated(s.handleCreatedRooms))
	s.mux.Handle("/rooms/leave", s.authenticated(s.handleLeaveRoom))
	s.mux.Handle("/rooms/", s.authenticated(s.handleRoomByID))

	// transcription and analysis
	s.mux.Handle("/transcribe", s.authenticated(s.handleTranscribe))
	s.mux.Handle("/transcribe/youtube", s.authenticated(s.handleTranscribeYouTube))
	s.mux.Handle("/transcriptions", s.authenticated(s.handleTranscriptions))
	s.mux.Handle("/ai/analyze", s.authenticated(s.handleAnalyze))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// writeAppError maps domain errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrNotRoomCreator):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrRoomNotFound),
		errors.Is(err, app.ErrNotInAnyRoom),
		errors.Is(err, app.ErrSubjectNotFound),
		errors.Is(err, app.ErrScheduleEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrUsernameTaken),
		errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrAlreadyInRoom):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrRegistrationFieldsRequired),
		errors.Is(err, app.ErrEmailRequired),
		errors.Is(err, app.ErrInvalidResetToken),
		errors.Is(err, app.ErrRoomNameRequired),
		errors.Is(err, app.ErrRoomStatusRequired),
		errors.Is(err, app.ErrSubjectNameRequired),
		errors.Is(err, app.ErrDurationRequired),
		errors.Is(err, app.ErrScheduleTimesRequired),
		errors.Is(err, app.ErrScheduleTimeOrder),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		var apiErr *inference.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, apiErr.Message)
			return
		}
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
