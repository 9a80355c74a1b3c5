package app

import (
	"fmt"
	"strings"
	"time"

	"learninghelper/internal/mailer"
	"learninghelper/pkg/storage"
	"learninghelper/pkg/store"
)

// TokenStore issues session and password-reset tokens.
type TokenStore interface {
	store.SessionStore
	NewResetToken(userID string, ttl time.Duration) (string, error)
	UserIDFromResetToken(token string) (string, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	JWTSecret     string
	SessionTTL    time.Duration
	RememberTTL   time.Duration
	ResetTokenTTL time.Duration
	ResetBaseURL  string

	// Optional injected dependencies; defaults are built from the fields
	// above when nil.
	Store    store.Store
	Sessions TokenStore
	Objects  storage.ObjectStore
	Mail     mailer.Mailer
}

// App wires storage, sessions, mail, and the domain logic together.
type App struct {
	store    store.Store
	sessions TokenStore
	objects  storage.ObjectStore
	mail     mailer.Mailer

	sessionTTL   time.Duration
	rememberTTL  time.Duration
	resetTTL     time.Duration
	resetBaseURL string
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.RememberTTL == 0 {
		cfg.RememberTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL == 0 {
		cfg.ResetTokenTTL = 15 * time.Minute
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			dataStore = store.NewMemoryStore()
		} else {
			gormStore, err := store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
			dataStore = gormStore
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, revoker)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessions = jwtStore
	}

	objects := cfg.Objects
	if objects == nil {
		objects = storage.NewMemoryObjectStore()
	}
	mail := cfg.Mail
	if mail == nil {
		mail = &mailer.LogMailer{}
	}

	return &App{
		store:        dataStore,
		sessions:     sessions,
		objects:      objects,
		mail:         mail,
		sessionTTL:   cfg.SessionTTL,
		rememberTTL:  cfg.RememberTTL,
		resetTTL:     cfg.ResetTokenTTL,
		resetBaseURL: strings.TrimRight(cfg.ResetBaseURL, "/"),
	}, nil
}
