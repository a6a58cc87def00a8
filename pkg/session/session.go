package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session ID has no stored session,
// either because it never existed or because it expired.
var ErrNotFound = errors.New("session not found")

// FlowState is the per-login state staged between SSO initiation and the
// identity provider's callback. Inline metadata takes priority over the
// metadata URL when both are set.
type FlowState struct {
	// MetadataInline is a raw identity provider metadata XML document
	// staged for this login, if any.
	MetadataInline string `json:"metadata_inline,omitempty"`

	// MetadataURL is a remote metadata location staged for this login,
	// if any.
	MetadataURL string `json:"metadata_url,omitempty"`

	// RedirectURL is the validated post-login destination.
	RedirectURL string `json:"redirect_url"`

	CreatedAt time.Time `json:"created_at"`
}

// Session is a server-side browser session. UserID is zero until a login
// completes.
type Session struct {
	ID     string     `json:"id"`
	UserID int64      `json:"user_id,omitempty"`
	Flow   *FlowState `json:"flow,omitempty"`

	// NameID and SessionIndex are the identity provider's handles for
	// this login, kept for building single logout requests.
	NameID       string `json:"name_id,omitempty"`
	SessionIndex string `json:"session_index,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// Store persists sessions. Implementations must return ErrNotFound for
// missing or expired IDs.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}
