package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName is the browser cookie carrying the session ID.
const CookieName = "saml2auth_session"

// Manager ties browser cookies to stored sessions.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
}

// NewManager creates a session manager backed by store. Sessions expire
// after ttl. secure controls the cookie's Secure flag and should only be
// disabled for local development over plain HTTP.
func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		secure: secure,
	}
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Current loads the session referenced by the request cookie. Returns
// ErrNotFound when there is no cookie or the session expired.
func (m *Manager) Current(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, cookie.Value)
}

// PeekFlowState returns the pending flow state without consuming it.
// Used at initiation time to carry forward staged tenant metadata.
func (m *Manager) PeekFlowState(ctx context.Context, r *http.Request) (*FlowState, error) {
	sess, err := m.Current(ctx, r)
	if err != nil {
		return nil, err
	}
	if sess.Flow == nil {
		return nil, ErrNotFound
	}
	return sess.Flow, nil
}

// BeginFlow replaces any existing session with a fresh anonymous one
// carrying the given flow state. Initiating a new login always discards
// prior state, including an authenticated session.
func (m *Manager) BeginFlow(ctx context.Context, w http.ResponseWriter, r *http.Request, flow *FlowState) error {
	if old, err := m.Current(ctx, r); err == nil {
		if err := m.store.Delete(ctx, old.ID); err != nil {
			return fmt.Errorf("discarding previous session: %w", err)
		}
	}

	flow.CreatedAt = time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		Flow:      flow,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, sess, m.ttl); err != nil {
		return fmt.Errorf("saving flow session: %w", err)
	}

	m.setCookie(w, sess.ID)
	return nil
}

// TakeFlowState consumes the pending flow state for the request's session.
// The backing session is deleted in the same step, so a second call with
// the same cookie returns ErrNotFound. Establish mints the replacement.
func (m *Manager) TakeFlowState(ctx context.Context, r *http.Request) (*FlowState, error) {
	sess, err := m.Current(ctx, r)
	if err != nil {
		return nil, err
	}
	if sess.Flow == nil {
		return nil, ErrNotFound
	}

	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("consuming flow session: %w", err)
	}
	return sess.Flow, nil
}

// Establish creates an authenticated session for userID with a fresh ID
// and points the browser cookie at it. nameID and sessionIndex are the
// identity provider's handles for the login and may be empty.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, userID int64, nameID, sessionIndex string) (*Session, error) {
	sess := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		NameID:       nameID,
		SessionIndex: sessionIndex,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.Save(ctx, sess, m.ttl); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	m.setCookie(w, sess.ID)
	return sess, nil
}

// Destroy removes the request's session and expires the cookie. It is a
// no-op when no session exists.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sess, err := m.Current(ctx, r)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.clearCookie(w)
			return nil
		}
		return err
	}

	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	m.clearCookie(w)
	return nil
}

// CurrentUserID returns the authenticated user for the request, if any.
func (m *Manager) CurrentUserID(ctx context.Context, r *http.Request) (int64, bool) {
	sess, err := m.Current(ctx, r)
	if err != nil || !sess.Authenticated() {
		return 0, false
	}
	return sess.UserID, true
}
