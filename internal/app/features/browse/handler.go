// Package browse serves the read side of the inventory: per-parent
// listings, breadcrumbs, search and the caller's whole tree.
package browse

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Inventory *inventory.Service
	Members   *membership.Reconciler
	Log       *zap.Logger
}

func NewHandler(inv *inventory.Service, members *membership.Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Inventory: inv, Members: members, Log: logger}
}

// serve runs fn under a timeout and writes its result.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, op string, timeout time.Duration, fn func(context.Context, inventory.Viewer) (any, error)) {
	v := authz.Viewer(r)
	if v.UserID == "" {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeout, h.Log, "browse."+op)
	defer cancel()

	out, err := fn(ctx, v)
	if err != nil {
		apierrors.Respond(w, h.Log, op, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

// requireMember fails with authz.ErrForbidden unless v belongs to gid.
func (h *Handler) requireMember(ctx context.Context, v inventory.Viewer, gid string) error {
	if v.Admin {
		return nil
	}
	member, err := h.Members.CheckUserInGroup(ctx, gid, v.UserID)
	if err != nil {
		return err
	}
	if !member {
		return authz.ErrForbidden
	}
	return nil
}

// memberOf is requireMember for the group that collection/id hangs under.
// An empty collection means the id may be an item, zone or property.
func (h *Handler) memberOf(ctx context.Context, v inventory.Viewer, collection, id string) error {
	if v.Admin {
		return nil
	}
	var (
		gid string
		err error
	)
	if collection == "" {
		gid, err = h.Inventory.GroupOfEntity(ctx, id)
	} else {
		gid, err = h.Inventory.GroupOf(ctx, collection, id)
	}
	if err != nil {
		return err
	}
	return h.requireMember(ctx, v, gid)
}

// ServeGroupProperties lists a group's properties. Listings below need
// membership of the group they hang under, except for admins.
func (h *Handler) ServeGroupProperties(w http.ResponseWriter, r *http.Request) {
	gid := chi.URLParam(r, "id")
	h.serve(w, r, "properties", timeouts.Short(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		if err := h.requireMember(ctx, v, gid); err != nil {
			return nil, err
		}
		return h.Inventory.Properties(ctx, v, gid)
	})
}

// ServePropertyZones lists the top-level zones of a property.
func (h *Handler) ServePropertyZones(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, "zones", timeouts.Short(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		if err := h.memberOf(ctx, v, storage.Properties, id); err != nil {
			return nil, err
		}
		return h.Inventory.Zones(ctx, v, id)
	})
}

// ServeSubZones lists the zones nested directly in a zone.
func (h *Handler) ServeSubZones(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, "subzones", timeouts.Short(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		if err := h.memberOf(ctx, v, storage.Zones, id); err != nil {
			return nil, err
		}
		return h.Inventory.SubZones(ctx, v, id)
	})
}

// ServeZoneItems lists the items in a zone.
func (h *Handler) ServeZoneItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, "items", timeouts.Short(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		if err := h.memberOf(ctx, v, storage.Zones, id); err != nil {
			return nil, err
		}
		return h.Inventory.Items(ctx, id)
	})
}

// ServeAncestors returns the breadcrumb of an item, zone or property.
func (h *Handler) ServeAncestors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, "ancestors", timeouts.Medium(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		if err := h.memberOf(ctx, v, "", id); err != nil {
			return nil, err
		}
		return h.Inventory.Ancestors(ctx, id)
	})
}

// ServeSearch matches the term against every name in the caller's groups.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "search", timeouts.Long(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		return h.Inventory.Search(ctx, v, chi.URLParam(r, "term"))
	})
}

// ServeTree returns the caller's groups with everything under them.
func (h *Handler) ServeTree(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "tree", timeouts.Long(), func(ctx context.Context, v inventory.Viewer) (any, error) {
		return h.Inventory.Tree(ctx, v)
	})
}
