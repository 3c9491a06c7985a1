package groups

import "github.com/go-chi/chi/v5"

// Routes registers the membership endpoints on the /private router. They
// share it with the generic /{collection}/{id} routes, which chi tries after
// these static prefixes, so they cannot be mounted as a sub-router.
func Routes(r chi.Router, h *Handler) {
	r.Post("/groups/create", h.HandleCreate)
	r.Post("/groups/join/{code}", h.HandleJoin)
	r.Delete("/groups/leave/{id}", h.HandleLeave)
	r.Get("/groups/code/{code}", h.ServeByCode)
	r.Get("/users/me/groups", h.ServeMine)
}
