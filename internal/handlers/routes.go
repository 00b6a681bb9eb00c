package handlers

import (
	"fmt"

	"github.com/go-chi/chi/v5"
)

const (
	RouteRegister    = "register"
	RouteLogin       = "login"
	RouteLogout      = "logout"
	RouteProfile     = "profile"
	RouteProfileEdit = "profile-edit"
)

var routes = map[string]string{
	RouteRegister:    "/users/register/",
	RouteLogin:       "/users/login/",
	RouteLogout:      "/users/logout/",
	RouteProfile:     "/users/profile/",
	RouteProfileEdit: "/users/profile/edit/",
}

// Reverse returns the path registered under name. Unknown names panic.
func Reverse(name string) string {
	path, ok := routes[name]
	if !ok {
		panic(fmt.Sprintf("handlers: no route named %q", name))
	}
	return path
}

// AccountsRouter registers the account pages on r.
func AccountsRouter(r chi.Router, h *AccountsHandler) {
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Get(Reverse(RouteRegister), h.RegisterForm)
		r.Post(Reverse(RouteRegister), h.Register)
		r.Get(Reverse(RouteLogin), h.LoginForm)
		r.Post(Reverse(RouteLogin), h.Login)
		r.Get(Reverse(RouteLogout), h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireLogin)

			r.Get(Reverse(RouteProfile), h.Profile)
			r.Get(Reverse(RouteProfileEdit), h.ProfileEditForm)
			r.Post(Reverse(RouteProfileEdit), h.ProfileEdit)
		})
	})
}
