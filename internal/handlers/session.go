package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
)

// SessionStore is the host-layer access gate. The metrics engine never
// sees it: sessions exist only between the HTTP surface and the browser.
// An empty password disables the gate entirely.
type SessionStore struct {
	mu       sync.RWMutex
	password string
	timeout  time.Duration
	sessions map[string]time.Time
}

func NewSessionStore(password string, timeout time.Duration) *SessionStore {
	return &SessionStore{
		password: password,
		timeout:  timeout,
		sessions: make(map[string]time.Time),
	}
}

// Enabled reports whether a password is configured.
func (s *SessionStore) Enabled() bool {
	return s.password != ""
}

// Login validates the password and issues a session token.
func (s *SessionStore) Login(password string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, errors.BadRequest("access gate is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", time.Time{}, errors.Unauthorized("incorrect password")
	}

	token := uuid.NewString()
	expires := time.Now().Add(s.timeout)

	s.mu.Lock()
	s.sessions[token] = expires
	s.prune()
	s.mu.Unlock()

	return token, expires, nil
}

// Valid reports whether the token belongs to a live session.
func (s *SessionStore) Valid(token string) bool {
	if !s.Enabled() {
		return true
	}
	s.mu.RLock()
	expires, ok := s.sessions[token]
	s.mu.RUnlock()
	return ok && time.Now().Before(expires)
}

// Logout revokes a session token.
func (s *SessionStore) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// prune drops expired sessions. Caller holds the write lock.
func (s *SessionStore) prune() {
	now := time.Now()
	for token, expires := range s.sessions {
		if now.After(expires) {
			delete(s.sessions, token)
		}
	}
}

type SessionHandlers struct {
	sessions *SessionStore
	logger   *slog.Logger
}

func NewSessionHandlers(sessions *SessionStore, logger *slog.Logger) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *SessionHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid login payload"), requestID)
		return
	}

	token, expires, err := h.sessions.Login(req.Password)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, loginResponse{Token: token, ExpiresAt: expires})
}

func (h *SessionHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Session-Token")
	if token != "" {
		h.sessions.Logout(token)
	}
	errors.WriteSuccess(w, map[string]string{"status": "logged out"})
}
