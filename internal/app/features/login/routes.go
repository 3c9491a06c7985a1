package login

import (
	"github.com/dalemusser/inventoryhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /public/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(ratelimit.Auth())
	r.Post("/login", h.HandleLogin)
	r.Post("/register", h.HandleRegister)
	return r
}
