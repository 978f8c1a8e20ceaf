package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/concord-chat/concord/pkg/domain"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			DeviceID string `json:"device_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Username != "alice" || req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(Credentials{UserID: "u-alice", Token: "tok-1"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	creds, err := c.Login(context.Background(), "alice", "hunter2", "dev-1")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if creds.UserID != "u-alice" {
		t.Errorf("UserID = %q, want %q", creds.UserID, "u-alice")
	}
	if creds.Token != "tok-1" {
		t.Errorf("Token = %q, want %q", creds.Token, "tok-1")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Login(context.Background(), "alice", "wrong", "dev-1")
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("error = %v, want HTTP 401", err)
	}
	if got := err.Error(); !strings.Contains(got, "bad credentials") {
		t.Errorf("error = %q, want it to contain the server message", got)
	}
}

func TestRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]RoomInfo{ //nolint:errcheck
			{ID: "r1", Name: "General", Members: []MemberInfo{{ID: "u1", Name: "Alice"}}},
			{ID: "r2", Name: "Random"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	rooms, err := c.Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms() error: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	if rooms[0].Name != "General" {
		t.Errorf("rooms[0].Name = %q, want %q", rooms[0].Name, "General")
	}
	if len(rooms[0].Members) != 1 || rooms[0].Members[0].ID != "u1" {
		t.Errorf("rooms[0].Members = %v, want one member u1", rooms[0].Members)
	}
}

func TestMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms/r1/messages" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want %q", got, "50")
		}
		json.NewEncoder(w).Encode([]Frame{ //nolint:errcheck
			{Type: "message", Room: "r1", Seq: 2, ID: "m2", Author: "bob", Content: "two"},
			{Type: "message", Room: "r1", Seq: 1, ID: "m1", Author: "bob", Content: "one"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	frames, err := c.Messages(context.Background(), "r1", time.Time{}, 50)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	ev, err := frames[0].Event()
	if err != nil {
		t.Fatalf("frame.Event() error: %v", err)
	}
	if mc := ev.(domain.MessageCreated); mc.ID != "m2" {
		t.Errorf("ID = %q, want %q", mc.ID, "m2")
	}
}

func TestMessages_BeforeParam(t *testing.T) {
	before := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("before"); got != before.Format(time.RFC3339Nano) {
			t.Errorf("before = %q, want %q", got, before.Format(time.RFC3339Nano))
		}
		json.NewEncoder(w).Encode([]Frame{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	if _, err := c.Messages(context.Background(), "r1", before, 50); err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
}

func TestLogout(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/logout" && r.Method == http.MethodPost {
			called = true
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if !called {
		t.Error("logout endpoint not called")
	}
}
