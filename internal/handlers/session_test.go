package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSessionStore_Disabled(t *testing.T) {
	s := NewSessionStore("", time.Hour)

	if s.Enabled() {
		t.Error("empty password should disable the gate")
	}
	if !s.Valid("anything") {
		t.Error("disabled gate should accept any token")
	}
	if _, _, err := s.Login("whatever"); err == nil {
		t.Error("login against a disabled gate should fail")
	}
}

func TestSessionStore_LoginLogout(t *testing.T) {
	s := NewSessionStore("secret", time.Hour)

	if _, _, err := s.Login("wrong"); err == nil {
		t.Error("wrong password should be rejected")
	}

	token, expires, err := s.Login("secret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}
	if !expires.After(time.Now()) {
		t.Error("expiry should be in the future")
	}

	if !s.Valid(token) {
		t.Error("freshly issued token should be valid")
	}
	if s.Valid("unknown-token") {
		t.Error("unknown token should be invalid")
	}

	s.Logout(token)
	if s.Valid(token) {
		t.Error("token should be invalid after logout")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	s := NewSessionStore("secret", -time.Minute)

	token, _, err := s.Login("secret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if s.Valid(token) {
		t.Error("token past its timeout should be invalid")
	}
}

func TestHandleLogin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewSessionHandlers(NewSessionStore("secret", time.Hour), logger)

	t.Run("wrong password", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"password":"nope"}`))
		h.HandleLogin(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/session", strings.NewReader("{"))
		h.HandleLogin(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("correct password", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"password":"secret"}`))
		h.HandleLogin(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}

		envelope := decodeEnvelope(t, w.Body)
		data, ok := envelope["data"].(map[string]any)
		if !ok {
			t.Fatal("expected data object")
		}
		if token, _ := data["token"].(string); token == "" {
			t.Error("expected a non-empty token")
		}
		if _, ok := data["expires_at"]; !ok {
			t.Error("expected an expiry timestamp")
		}
	})
}

func TestHandleLogout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewSessionStore("secret", time.Hour)
	h := NewSessionHandlers(store, logger)

	token, _, err := store.Login("secret")
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("DELETE", "/api/session", nil)
	r.Header.Set("X-Session-Token", token)
	h.HandleLogout(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if store.Valid(token) {
		t.Error("token should be revoked after logout")
	}
}
