package userinfo

import "github.com/go-chi/chi/v5"

// Routes registers the account endpoints on the /private router, ahead of
// the generic /{collection}/{id} routes.
func Routes(r chi.Router, h *Handler) {
	r.Get("/users/me", h.ServeUserInfo)
	r.Put("/users/me", h.HandleUpdateMe)
	r.Delete("/users/me", h.HandleDeleteMe)
	r.Put("/users/{id}", h.HandleUpdateUser)
	r.Delete("/users/{id}", h.HandleDeleteUser)
}
