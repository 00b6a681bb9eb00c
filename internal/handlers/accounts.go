package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/internal/forms"
	"github.com/jjudge-oj/accounts/internal/services"
	"github.com/jjudge-oj/accounts/internal/sessions"
)

// AccountsHandler serves registration, login/logout and the profile pages.
type AccountsHandler struct {
	users    *services.UserService
	sessions *sessions.Manager
	logger   *zap.Logger
}

// NewAccountsHandler constructs an AccountsHandler with the provided dependencies.
func NewAccountsHandler(users *services.UserService, manager *sessions.Manager, logger *zap.Logger) *AccountsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountsHandler{
		users:    users,
		sessions: manager,
		logger:   logger,
	}
}

func (h *AccountsHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageRegister, page{Form: forms.Registration{}})
}

// Register creates an account and sends the visitor to the login page.
func (h *AccountsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form forms.Registration
	if err := forms.Decode(r, &form); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), form)
	if err != nil {
		var errs forms.Errors
		if errors.As(err, &errs) {
			form.Password = ""
			h.render(w, r, http.StatusOK, pageRegister, page{Form: form, Errors: errs})
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	http.Redirect(w, r, Reverse(RouteLogin), http.StatusSeeOther)
}

func (h *AccountsHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	form := forms.Login{Next: safeNext(r.URL.Query().Get("next"))}
	h.render(w, r, http.StatusOK, pageLogin, page{Form: form})
}

// Login checks the credentials and starts a new session.
func (h *AccountsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form forms.Login
	if err := forms.Decode(r, &form); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if form.Next == "" {
		form.Next = r.URL.Query().Get("next")
	}
	form.Next = safeNext(form.Next)

	if errs := forms.Validate(&form); errs != nil {
		h.renderLogin(w, r, form, errs)
		return
	}

	user, err := h.users.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.renderLogin(w, r, form, forms.Errors{forms.NonField: {forms.MsgInvalidLogin}})
			return
		}
		h.serverError(w, r, err)
		return
	}

	session, err := h.sessions.Login(r.Context(), w, r, user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := h.users.RecordLogin(r.Context(), user); err != nil {
		h.logger.Error("failed to record login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	h.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("session_id", session.ID))

	target := form.Next
	if target == "" {
		target = Reverse(RouteProfile)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout ends the session, if any, and always lands on the login page.
func (h *AccountsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok, err := h.sessions.Logout(r.Context(), w, r)
	if err != nil {
		h.logger.Warn("failed to destroy session", zap.Error(err))
	}
	if ok {
		h.users.RecordLogout(r.Context(), session.UserID)
		h.logger.Info("user logged out", zap.Int64("user_id", session.UserID))
	}
	http.Redirect(w, r, Reverse(RouteLogin), http.StatusFound)
}

func (h *AccountsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageProfile, page{})
}

func (h *AccountsHandler) ProfileEditForm(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	form := forms.Profile{
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	h.render(w, r, http.StatusOK, pageProfileEdit, page{Form: form})
}

// ProfileEdit saves the edit form for the logged-in user.
func (h *AccountsHandler) ProfileEdit(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	var form forms.Profile
	if err := forms.Decode(r, &form); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, form)
	if err != nil {
		var errs forms.Errors
		if errors.As(err, &errs) {
			h.render(w, r, http.StatusOK, pageProfileEdit, page{Form: form, Errors: errs})
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("profile updated", zap.Int64("user_id", updated.ID))
	http.Redirect(w, r, Reverse(RouteProfile), http.StatusSeeOther)
}

func (h *AccountsHandler) renderLogin(w http.ResponseWriter, r *http.Request, form forms.Login, errs forms.Errors) {
	form.Password = ""
	h.render(w, r, http.StatusOK, pageLogin, page{Form: form, Errors: errs})
}

func (h *AccountsHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	data.User = currentUserPtr(r.Context())
	if err := render(w, status, name, data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *AccountsHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("malformed form submission", zap.String("path", r.URL.Path), zap.Error(err))
	h.render(w, r, http.StatusBadRequest, pageError, page{Message: "bad request"})
}

func (h *AccountsHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.render(w, r, http.StatusInternalServerError, pageError, page{Message: "internal server error"})
}
