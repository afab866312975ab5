package session

import (
	"context"
	"errors"
	"time"

	"auth-shell/internal/auth"
)

var ErrNotFound = errors.New("session: not found")

// Session is the server-side record of one signed-in browser. The browser
// only ever holds SessionID.
type Session struct {
	SessionID string    `json:"session_id"`
	User      auth.User `json:"user"`

	IDToken *auth.IDTokenClaims `json:"id_token"`

	AccessToken          string    `json:"access_token"`
	RefreshToken         string    `json:"refresh_token,omitempty"`
	TokenType            string    `json:"token_type"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry
}

// Expired reports whether the session is past its absolute expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
// Get returns ErrNotFound for unknown or expired sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
