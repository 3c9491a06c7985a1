package collections

import "github.com/go-chi/chi/v5"

// Routes registers the document routes on the /private router, after the
// feature routes that share its prefixes.
func Routes(r chi.Router, h *Handler) {
	r.Post("/{collection}", h.HandleCreate)
	r.Get("/{collection}", h.ServeQuery)
	r.Get("/{collection}/{id}", h.ServeGet)
	r.Put("/{collection}/{id}", h.HandleUpdate)
	r.Delete("/{collection}/{id}", h.HandleDelete)
}
