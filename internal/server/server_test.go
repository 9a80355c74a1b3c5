package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"learninghelper/internal/app"
	"learninghelper/internal/inference"
	"learninghelper/internal/mailer"
	"learninghelper/internal/ratelimit"
	"learninghelper/pkg/domain"
	"learninghelper/pkg/storage"
	"learninghelper/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	memStore := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := app.New(app.Config{
		Store:        memStore,
		Sessions:     sessions,
		Objects:      storage.NewMemoryObjectStore(),
		Mail:         &mailer.LogMailer{},
		ResetBaseURL: "http://localhost:3000",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: a}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := httptest.NewServer(New(cfg).Router())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: memStore}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) (domain.User, string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"name":     "Student " + username,
		"email":    username + "@example.com",
		"password": "Str0ngPass",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": username,
		"password": "Str0ngPass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	auth := decodeBody[struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}](t, resp)
	return auth.User, auth.Token
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	user, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodGet, "/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status %d", resp.StatusCode)
	}
	profile := decodeBody[domain.User](t, resp)
	if profile.ID != user.ID || profile.Username != "alice" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	resp = env.do(t, http.MethodGet, "/profile", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestDuplicateRegisterIsConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"name":     "Clone",
		"email":    "clone@example.com",
		"password": "Str0ngPass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLogoutKillsToken(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/profile", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, func(cfg *Config) {
		cfg.LoginLimiter = limiter
	})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
			"username": "ghost",
			"password": "whatever",
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, resp.StatusCode)
		}
	}
	resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "ghost",
		"password": "whatever",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestAnalyzeProxiesToInference(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/analyze" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("expected forwarded bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"advice":"sleep more"}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, func(cfg *Config) {
		cfg.Inference = inference.NewClient(upstream.URL, time.Minute, time.Minute)
	})
	_, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/ai/analyze", token, map[string]string{"subject": "math"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status %d", resp.StatusCode)
	}
	out := decodeBody[map[string]string](t, resp)
	if out["advice"] != "sleep more" {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestAnalyzeUpstreamFailureIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"model crashed"}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, func(cfg *Config) {
		cfg.Inference = inference.NewClient(upstream.URL, time.Minute, time.Minute)
	})
	_, token := env.registerAndLogin(t, "alice")

	resp := env.do(t, http.MethodPost, "/ai/analyze", token, map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}
