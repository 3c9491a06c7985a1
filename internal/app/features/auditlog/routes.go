package auditlog

import "github.com/go-chi/chi/v5"

// Routes registers the activity listing on the /private router.
func Routes(r chi.Router, h *Handler) {
	r.Get("/logs/group/{id}", h.ServeList)
}
