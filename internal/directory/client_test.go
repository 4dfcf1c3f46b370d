package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(
		&http.Client{Timeout: 3 * time.Second},
		srv.URL,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return c, srv
}

func TestClient_Login_ReturnsDirectoryToken(t *testing.T) {
	var gotBody map[string]string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/login" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/users/login")
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "directory-token-abc"})
	}))
	defer srv.Close()

	tok, err := c.Login(context.Background(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if tok != "directory-token-abc" {
		t.Errorf("token = %q, want %q", tok, "directory-token-abc")
	}
	if gotBody["email"] != "user@example.com" {
		t.Errorf("email = %q, want %q", gotBody["email"], "user@example.com")
	}
	if gotBody["password"] != "secret" {
		t.Errorf("password = %q, want %q", gotBody["password"], "secret")
	}
}

func TestClient_Login_EmptyTokenIsError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := c.Login(context.Background(), "user@example.com", "secret")
	if err == nil {
		t.Fatal("expected error for empty token response, got nil")
	}
}

func TestClient_Login_Non2xxReturnsStatusError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := c.Login(context.Background(), "user@example.com", "wrong")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusUnauthorized {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusUnauthorized)
	}
}

func TestClient_Register_ReturnsCreatedUser(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/register" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/users/register")
		}
		var req model.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.Preferences == nil || req.Preferences.Language != "de" {
			t.Errorf("preferences should be relayed, got %+v", req.Preferences)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.User{
			ID:        "3f8e9a40-0f3c-4d6b-9a2e-1c5d7b8e9f00",
			Email:     req.Email,
			FirstName: req.FirstName,
		})
	}))
	defer srv.Close()

	user, err := c.Register(context.Background(), &model.RegisterRequest{
		Email:     "new@example.com",
		Password:  "secret",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Preferences: &model.UserPreferences{
			Language: "de",
		},
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected non-empty user ID")
	}
	if user.Email != "new@example.com" {
		t.Errorf("Email = %q, want %q", user.Email, "new@example.com")
	}
}

func TestClient_Register_ConflictReturnsStatusError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := c.Register(context.Background(), &model.RegisterRequest{Email: "dup@example.com"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusConflict {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusConflict)
	}
}

func TestClient_User_FetchesByID(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/user-123" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/users/user-123")
		}
		json.NewEncoder(w).Encode(model.User{ID: "user-123", Email: "u@example.com"})
	}))
	defer srv.Close()

	user, err := c.User(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("User error: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("ID = %q, want %q", user.ID, "user-123")
	}
}

func TestClient_Profile_SendsBearerToken(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer directory-token-abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer directory-token-abc")
		}
		json.NewEncoder(w).Encode(model.User{ID: "user-123"})
	}))
	defer srv.Close()

	user, err := c.Profile(context.Background(), "directory-token-abc")
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("ID = %q, want %q", user.ID, "user-123")
	}
}

func TestClient_ContextCancellationAbandonsRequest(t *testing.T) {
	blocked := make(chan struct{})
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Login(ctx, "user@example.com", "secret")
	if err == nil {
		t.Fatal("expected error when context is cancelled, got nil")
	}
}
