package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/internal/sessions"
	"github.com/jjudge-oj/accounts/internal/store"
)

// Authenticate attaches the session's user to the request context. Requests
// without a valid session, or whose user is gone or inactive, pass through anonymous.
func (h *AccountsHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		session, err := h.sessions.Resolve(ctx, r)
		if err != nil {
			if !errors.Is(err, sessions.ErrNotFound) && !errors.Is(err, sessions.ErrInvalidToken) {
				h.logger.Warn("failed to resolve session", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.users.GetByID(ctx, session.UserID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				h.logger.Warn("failed to load session user", zap.Int64("user_id", session.UserID), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		if !user.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(ctx, user)))
	})
}

// RequireLogin redirects anonymous requests to the login page with the
// requested path in next.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r) {
			http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
