package app

import (
	"testing"
	"time"

	"learninghelper/internal/mailer"
	"learninghelper/pkg/domain"
	"learninghelper/pkg/storage"
	"learninghelper/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *mailer.LogMailer) {
	t.Helper()
	memStore := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	mail := &mailer.LogMailer{}
	a, err := New(Config{
		Store:        memStore,
		Sessions:     sessions,
		Objects:      storage.NewMemoryObjectStore(),
		Mail:         mail,
		SessionTTL:   time.Hour,
		RememberTTL:  7 * 24 * time.Hour,
		ResetBaseURL: "http://localhost:3000",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, memStore, mail
}

func registerUser(t *testing.T, a *App, username string) domain.User {
	t.Helper()
	user, err := a.Register(username, "Student "+username, username+"@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}
