package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/types"
)

func newManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewManager(store, config.SessionConfig{Secret: "test-secret", TTL: time.Hour}), store
}

// requestWith returns a request carrying every cookie set on rec.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_LoginThenResolve(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	session, err := m.Login(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.UserID)
	assert.Equal(t, 1, store.Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sessionid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, session.ID, "cookie carries a signed token, not the raw id")

	resolved, err := m.Resolve(ctx, requestWith(rec))
	require.NoError(t, err)
	assert.Equal(t, session.ID, resolved.ID)
}

func TestManager_ResolveAnonymous(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_ResolveRejectsForeignSignature(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	now := time.Now()
	session := types.Session{ID: "s1", UserID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, session))
	forged, err := signToken(session, []byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: forged})
	_, err = m.Resolve(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_ResolveRejectsMismatchedUser(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Save(ctx, types.Session{ID: "s1", UserID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	token, err := signToken(types.Session{ID: "s1", UserID: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}, m.secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	_, err = m.Resolve(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_LoginRotatesSession(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	first := httptest.NewRecorder()
	old, err := m.Login(ctx, first, httptest.NewRequest(http.MethodPost, "/", nil), 1)
	require.NoError(t, err)

	second := httptest.NewRecorder()
	fresh, err := m.Login(ctx, second, requestWith(first), 1)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, 1, store.Len())
	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Logout(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	loginRec := httptest.NewRecorder()
	session, err := m.Login(ctx, loginRec, httptest.NewRequest(http.MethodPost, "/", nil), 5)
	require.NoError(t, err)

	logoutRec := httptest.NewRecorder()
	ended, ok, err := m.Logout(ctx, logoutRec, requestWith(loginRec))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.ID, ended.ID)
	assert.Equal(t, 0, store.Len())

	cookies := logoutRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, err = m.Resolve(ctx, requestWith(loginRec))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_LogoutAnonymousSucceeds(t *testing.T) {
	m, _ := newManager(t)
	rec := httptest.NewRecorder()
	_, ok, err := m.Logout(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ExpiredTokenIsInvalid(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	_, err := m.Login(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), 9)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Resolve(ctx, requestWith(rec))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
