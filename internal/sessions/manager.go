package sessions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/types"
)

const defaultTTL = 14 * 24 * time.Hour

// Manager ties the session store to the session cookie.
type Manager struct {
	store      Store
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewManager constructs a Manager. The secret signs session cookies.
func NewManager(store Store, cfg config.SessionConfig) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	name := cfg.CookieName
	if name == "" {
		name = "sessionid"
	}
	return &Manager{
		store:      store,
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		cookieName: name,
		secure:     cfg.CookieSecure,
		now:        time.Now,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Login starts a new session for userID and sets the cookie. Any session the
// request already carries is destroyed first so the session ID never survives a login.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) (types.Session, error) {
	if previous, err := m.Resolve(ctx, r); err == nil {
		if err := m.store.Delete(ctx, previous.ID); err != nil {
			return types.Session{}, err
		}
	}

	now := m.now()
	session := types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	token, err := signToken(session, m.secret)
	if err != nil {
		return types.Session{}, err
	}
	if err := m.store.Save(ctx, session); err != nil {
		return types.Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// Logout destroys the request's session, if any, and expires the cookie.
// It reports the session that was ended; ok is false for anonymous requests.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) (types.Session, bool, error) {
	m.clearCookie(w)

	session, err := m.Resolve(ctx, r)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidToken) {
			return types.Session{}, false, nil
		}
		return types.Session{}, false, err
	}
	if err := m.store.Delete(ctx, session.ID); err != nil {
		return types.Session{}, false, err
	}
	return session, true, nil
}

// Resolve returns the live session referenced by the request cookie.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (types.Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return types.Session{}, ErrNotFound
	}

	now := m.now()
	sessionID, userID, err := parseToken(cookie.Value, m.secret, now)
	if err != nil {
		return types.Session{}, ErrInvalidToken
	}

	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return types.Session{}, err
	}
	if session.UserID != userID {
		return types.Session{}, ErrInvalidToken
	}
	if session.IsExpired(now) {
		_ = m.store.Delete(ctx, session.ID)
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
