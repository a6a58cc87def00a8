package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewMemoryStore(), time.Hour, false)
}

// requestWithCookies copies session cookies from a prior response onto a
// fresh request, as a browser would.
func requestWithCookies(method, target string, rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestManager_BeginFlowAndTake(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	rec := httptest.NewRecorder()
	err := m.BeginFlow(ctx, rec, httptest.NewRequest("GET", "/sso/login", nil), &FlowState{
		MetadataURL: "https://idp.example.com/metadata",
		RedirectURL: "/dashboard",
	})
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	flow, err := m.TakeFlowState(ctx, requestWithCookies("POST", "/sso/acs/", rec))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", flow.RedirectURL)
	assert.Equal(t, "https://idp.example.com/metadata", flow.MetadataURL)
	assert.False(t, flow.CreatedAt.IsZero())
}

func TestManager_TakeFlowStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.BeginFlow(ctx, rec, httptest.NewRequest("GET", "/sso/login", nil), &FlowState{
		RedirectURL: "/",
	}))

	_, err := m.TakeFlowState(ctx, requestWithCookies("POST", "/sso/acs/", rec))
	require.NoError(t, err)

	// A replayed callback with the same cookie finds nothing.
	_, err = m.TakeFlowState(ctx, requestWithCookies("POST", "/sso/acs/", rec))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_PeekFlowStateDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.BeginFlow(ctx, rec, httptest.NewRequest("GET", "/sso/login", nil), &FlowState{
		MetadataInline: "<EntityDescriptor/>",
		RedirectURL:    "/",
	}))

	flow, err := m.PeekFlowState(ctx, requestWithCookies("GET", "/sso/login", rec))
	require.NoError(t, err)
	assert.Equal(t, "<EntityDescriptor/>", flow.MetadataInline)

	// Still there after the peek.
	_, err = m.TakeFlowState(ctx, requestWithCookies("POST", "/sso/acs/", rec))
	assert.NoError(t, err)
}

func TestManager_CurrentCarriesLogoutHandles(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	authRec := httptest.NewRecorder()
	_, err := m.Establish(ctx, authRec, 42, "name-id", "session-idx")
	require.NoError(t, err)

	sess, err := m.Current(ctx, requestWithCookies("GET", "/sso/logout", authRec))
	require.NoError(t, err)
	assert.Equal(t, "name-id", sess.NameID)
	assert.Equal(t, "session-idx", sess.SessionIndex)
}

func TestManager_TakeFlowState_NoCookie(t *testing.T) {
	m := testManager(t)

	_, err := m.TakeFlowState(context.Background(), httptest.NewRequest("POST", "/sso/acs/", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_EstablishRotatesID(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	flowRec := httptest.NewRecorder()
	require.NoError(t, m.BeginFlow(ctx, flowRec, httptest.NewRequest("GET", "/sso/login", nil), &FlowState{
		RedirectURL: "/",
	}))
	flowID := flowRec.Result().Cookies()[0].Value

	_, err := m.TakeFlowState(ctx, requestWithCookies("POST", "/sso/acs/", flowRec))
	require.NoError(t, err)

	authRec := httptest.NewRecorder()
	sess, err := m.Establish(ctx, authRec, 42, "name-id", "session-idx")
	require.NoError(t, err)
	assert.NotEqual(t, flowID, sess.ID)
	assert.Equal(t, sess.ID, authRec.Result().Cookies()[0].Value)

	userID, ok := m.CurrentUserID(ctx, requestWithCookies("GET", "/", authRec))
	require.True(t, ok)
	assert.Equal(t, int64(42), userID)

	// The pre-login session ID no longer resolves.
	old := httptest.NewRequest("GET", "/", nil)
	old.AddCookie(&http.Cookie{Name: CookieName, Value: flowID})
	_, ok = m.CurrentUserID(ctx, old)
	assert.False(t, ok)
}

func TestManager_BeginFlowDiscardsExistingSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour, false)

	authRec := httptest.NewRecorder()
	sess, err := m.Establish(ctx, authRec, 7, "", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := requestWithCookies("GET", "/sso/login", authRec)
	require.NoError(t, m.BeginFlow(ctx, rec, req, &FlowState{RedirectURL: "/"}))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Destroy(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	authRec := httptest.NewRecorder()
	_, err := m.Establish(ctx, authRec, 42, "name-id", "session-idx")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, requestWithCookies("GET", "/sso/logout", authRec)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, ok := m.CurrentUserID(ctx, requestWithCookies("GET", "/", authRec))
	assert.False(t, ok)
}

func TestManager_DestroyWithoutSession(t *testing.T) {
	m := testManager(t)

	rec := httptest.NewRecorder()
	err := m.Destroy(context.Background(), rec, httptest.NewRequest("GET", "/sso/logout", nil))
	assert.NoError(t, err)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := &Session{ID: "abc", UserID: 1, CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, sess, -time.Second))

	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CopiesOnAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := &Session{ID: "abc", Flow: &FlowState{RedirectURL: "/a"}, CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, sess, time.Hour))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	got.Flow.RedirectURL = "/mutated"

	again, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "/a", again.Flow.RedirectURL)
}
