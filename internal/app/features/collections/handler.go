// Package collections serves the generic document API under
// /private/{collection}. Each collection decodes into its model, is
// sanitized and validated before any write, and inventory writes go through
// the inventory service so parent checks and cascades apply. Non-admins only
// reach documents under groups they belong to.
package collections

import (
	"context"
	"net/http"

	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DeleteFunc removes the document id on behalf of u, including whatever
// hangs off it.
type DeleteFunc func(ctx context.Context, u *auth.TokenUser, id string) error

type Handler struct {
	Store     storage.Storage
	Inventory *inventory.Service
	Members   *membership.Reconciler
	Log       *zap.Logger

	deleters map[string]DeleteFunc
}

func NewHandler(store storage.Storage, inv *inventory.Service, members *membership.Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{Store: store, Inventory: inv, Members: members, Log: logger}
	h.deleters = map[string]DeleteFunc{
		storage.Properties: func(ctx context.Context, _ *auth.TokenUser, id string) error {
			return inv.DeleteProperty(ctx, id)
		},
		storage.Zones: func(ctx context.Context, _ *auth.TokenUser, id string) error {
			return inv.DeleteZone(ctx, id)
		},
		storage.Items: func(ctx context.Context, _ *auth.TokenUser, id string) error {
			return inv.DeleteItem(ctx, id)
		},
	}
	return h
}

// OnDelete replaces the delete behavior for collection.
func (h *Handler) OnDelete(collection string, fn DeleteFunc) {
	h.deleters[collection] = fn
}

// readOnly collections are written by the server itself: users through
// registration, logs through the audit logger.
func readOnly(collection string) bool {
	return collection == storage.Users || collection == storage.Logs
}

// newDoc returns a pointer to the zero model of collection.
func newDoc(collection string) any {
	switch collection {
	case storage.Groups:
		return &models.Group{}
	case storage.UserGroup:
		return &models.UserGroup{}
	case storage.Properties:
		return &models.Property{}
	case storage.Zones:
		return &models.Zone{}
	case storage.Items:
		return &models.Item{}
	case storage.Users:
		return &models.User{}
	case storage.Logs:
		return &models.Log{}
	}
	return nil
}

// newList returns a pointer to an empty slice of collection's model.
func newList(collection string) any {
	switch collection {
	case storage.Groups:
		return &[]models.Group{}
	case storage.UserGroup:
		return &[]models.UserGroup{}
	case storage.Items:
		return &[]models.Item{}
	case storage.Users:
		return &[]models.User{}
	case storage.Logs:
		return &[]models.Log{}
	}
	return nil
}

// resolve checks the route's collection and the caller's access to it. On
// failure it writes the response and returns false.
func resolve(w http.ResponseWriter, r *http.Request) (string, *auth.TokenUser, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return "", nil, false
	}
	coll := chi.URLParam(r, "collection")
	if !storage.Known(coll) {
		httpjson.Error(w, http.StatusNotFound, "unknown collection "+coll)
		return "", nil, false
	}
	if !authz.CanAccess(r, coll) {
		httpjson.Error(w, http.StatusForbidden, "")
		return "", nil, false
	}
	return coll, u, true
}

func visible(v inventory.Viewer, doc any) bool {
	switch d := doc.(type) {
	case *models.Property:
		return v.Sees(d.UserID)
	case *models.Zone:
		return v.Sees(d.UserID)
	}
	return true
}

func keep[T any](in []T, ok func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if ok(v) {
			out = append(out, v)
		}
	}
	return out
}

func plainAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = htmlsanitize.PlainText(s)
	}
	return ss
}

// sanitize strips markup from user-entered text. Item descriptions keep
// safe formatting.
func sanitize(doc any) {
	switch d := doc.(type) {
	case *models.Group:
		d.Name = htmlsanitize.PlainText(d.Name)
		d.Tags = plainAll(d.Tags)
	case *models.Property:
		d.Name = htmlsanitize.PlainText(d.Name)
		d.Direction = htmlsanitize.PlainText(d.Direction)
	case *models.Zone:
		d.Name = htmlsanitize.PlainText(d.Name)
	case *models.Item:
		d.Name = htmlsanitize.PlainText(d.Name)
		d.Description = htmlsanitize.Sanitize(d.Description)
		d.Tags = plainAll(d.Tags)
		for i := range d.Values {
			d.Values[i].Name = htmlsanitize.PlainText(d.Values[i].Name)
			d.Values[i].Value = htmlsanitize.PlainText(d.Values[i].Value)
		}
	case *models.User:
		d.Name = htmlsanitize.PlainText(d.Name)
	}
}

// guard rejects documents that would act for or expose another user.
// Admins pass.
func guard(u *auth.TokenUser, doc any) error {
	if u.IsAdmin() {
		return nil
	}
	mine := func(id *primitive.ObjectID) bool { return id == nil || id.Hex() == u.ID }
	switch d := doc.(type) {
	case *models.UserGroup:
		if d.UserID.Hex() != u.ID {
			return authz.ErrForbidden
		}
	case *models.Property:
		if !mine(d.UserID) {
			return authz.ErrForbidden
		}
	case *models.Zone:
		if !mine(d.UserID) {
			return authz.ErrForbidden
		}
	}
	return nil
}

// claim makes private inventory created by a non-admin belong to them. A
// group created by a non-admin starts empty; joining counts its members.
func claim(u *auth.TokenUser, doc any) {
	uid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return
	}
	switch d := doc.(type) {
	case *models.Group:
		if !u.IsAdmin() {
			d.UserCount = 0
		}
	case *models.Property:
		if d.UserID != nil && !u.IsAdmin() {
			d.UserID = &uid
		}
	case *models.Zone:
		if (d.Private && d.UserID == nil) || (d.UserID != nil && !u.IsAdmin()) {
			d.UserID = &uid
		}
	}
}
