package browse

import "github.com/go-chi/chi/v5"

// Routes registers the browse endpoints on the /private router.
func Routes(r chi.Router, h *Handler) {
	r.Get("/properties/group/{id}", h.ServeGroupProperties)
	r.Get("/zones/property/{id}", h.ServePropertyZones)
	r.Get("/zones/parent/{id}", h.ServeSubZones)
	r.Get("/items/zone/{id}", h.ServeZoneItems)
	r.Get("/ancestors/{id}", h.ServeAncestors)
	r.Get("/search/{term}", h.ServeSearch)
	r.Get("/tree", h.ServeTree)
}
