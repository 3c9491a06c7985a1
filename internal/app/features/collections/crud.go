package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/inputval"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type oid struct {
	OID string `json:"$oid"`
}

type createResponse struct {
	InsertedID oid `json:"inserted_id"`
}

// HandleCreate stores a new document and answers with its id in extended
// JSON form.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	coll, u, ok := resolve(w, r)
	if !ok {
		return
	}
	if readOnly(coll) {
		httpjson.Error(w, http.StatusMethodNotAllowed, coll+" cannot be created through this API")
		return
	}
	doc := newDoc(coll)
	if err := httpjson.Decode(r, doc); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	claim(u, doc)
	sanitize(doc)
	if err := inputval.Validate(doc); err != nil {
		inputval.Respond(w, err)
		return
	}
	if err := guard(u, doc); err != nil {
		apierrors.Respond(w, h.Log, "create "+coll, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "collections.create")
	defer cancel()

	if err := h.accessFor(authz.Viewer(r)).admit(ctx, doc); err != nil {
		apierrors.Respond(w, h.Log, "create "+coll, err)
		return
	}
	id, err := h.create(ctx, doc)
	if err != nil {
		apierrors.Respond(w, h.Log, "create "+coll, err)
		return
	}
	h.Log.Debug("document created", zap.String("collection", coll), zap.String("id", id))
	httpjson.Write(w, http.StatusCreated, createResponse{InsertedID: oid{OID: id}})
}

func (h *Handler) create(ctx context.Context, doc any) (string, error) {
	switch d := doc.(type) {
	case *models.Property:
		p, err := h.Inventory.CreateProperty(ctx, *d)
		return p.ID.Hex(), err
	case *models.Zone:
		z, err := h.Inventory.CreateZone(ctx, *d)
		return z.ID.Hex(), err
	case *models.Item:
		it, err := h.Inventory.CreateItem(ctx, *d)
		return it.ID.Hex(), err
	case *models.Group:
		d.ID = primitive.NilObjectID
		return h.Store.Create(ctx, storage.Groups, d)
	case *models.UserGroup:
		d.ID = primitive.NilObjectID
		return h.Store.Create(ctx, storage.UserGroup, d)
	}
	return "", fmt.Errorf("no create for %T", doc)
}

// ServeQuery lists the documents matching the query-string filter. For
// non-admins, documents outside their groups and other users' private
// properties and zones are left out, and groups can only be looked up by
// groupCode.
func (h *Handler) ServeQuery(w http.ResponseWriter, r *http.Request) {
	coll, _, ok := resolve(w, r)
	if !ok {
		return
	}
	filter := storage.Filter{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			filter[k] = v[0]
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "collections.query")
	defer cancel()

	out, err := h.query(ctx, coll, filter, h.accessFor(authz.Viewer(r)))
	if err != nil {
		apierrors.Respond(w, h.Log, "query "+coll, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *Handler) query(ctx context.Context, coll string, filter storage.Filter, a *access) (any, error) {
	switch coll {
	case storage.Groups:
		if _, byCode := filter["groupCode"]; !byCode && !a.v.Admin {
			return nil, errNotListable
		}
	case storage.Properties:
		var ps []models.Property
		if err := h.Store.Query(ctx, coll, filter, &ps); err != nil {
			return nil, err
		}
		return only(ctx, a, keep(ps, func(p models.Property) bool { return a.v.Sees(p.UserID) }))
	case storage.Zones:
		var zs []models.Zone
		if err := h.Store.Query(ctx, coll, filter, &zs); err != nil {
			return nil, err
		}
		return only(ctx, a, keep(zs, func(z models.Zone) bool { return a.v.Sees(z.UserID) }))
	case storage.Items:
		var its []models.Item
		if err := h.Store.Query(ctx, coll, filter, &its); err != nil {
			return nil, err
		}
		return only(ctx, a, its)
	case storage.UserGroup:
		var rels []models.UserGroup
		if err := h.Store.Query(ctx, coll, filter, &rels); err != nil {
			return nil, err
		}
		return only(ctx, a, rels)
	}
	out := newList(coll)
	if err := h.Store.Query(ctx, coll, filter, out); err != nil {
		return nil, err
	}
	return out, nil
}

// load reads collection/id into its model, treating documents the caller
// may not see as missing.
func (h *Handler) load(ctx context.Context, r *http.Request, coll, id string) (any, error) {
	doc := newDoc(coll)
	if err := h.Store.Get(ctx, coll, id, doc); err != nil {
		return nil, err
	}
	if !visible(authz.Viewer(r), doc) {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

// ServeGet returns one document.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	coll, _, ok := resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "collections.get")
	defer cancel()

	doc, err := h.load(ctx, r, coll, chi.URLParam(r, "id"))
	if err == nil {
		err = h.accessFor(authz.Viewer(r)).read(ctx, doc)
	}
	if err != nil {
		apierrors.Respond(w, h.Log, "get "+coll, err)
		return
	}
	httpjson.Write(w, http.StatusOK, doc)
}

// HandleUpdate applies a partial update. The patch is merged onto the
// stored document and the result validated as a whole; only the patched
// fields are written. Non-admins need membership of the document's group,
// except for a userCount-only patch to a group, and a userCount they send
// is replaced by the group's relation count.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	coll, u, ok := resolve(w, r)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if err := httpjson.Decode(r, &patch); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	delete(patch, "_id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "collections.update")
	defer cancel()

	id := chi.URLParam(r, "id")
	doc, err := h.load(ctx, r, coll, id)
	if err != nil {
		apierrors.Respond(w, h.Log, "update "+coll, err)
		return
	}
	a := h.accessFor(authz.Viewer(r))
	member, err := a.allows(ctx, doc)
	if err != nil {
		apierrors.Respond(w, h.Log, "update "+coll, err)
		return
	}
	if _, isGroup := doc.(*models.Group); !member && !(isGroup && countOnly(patch)) {
		apierrors.Respond(w, h.Log, "update "+coll, authz.ErrForbidden)
		return
	}
	merged, err := merge(coll, doc, patch)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	sanitize(merged)
	if err := inputval.Validate(merged); err != nil {
		inputval.Respond(w, err)
		return
	}
	if err := guard(u, merged); err != nil {
		apierrors.Respond(w, h.Log, "update "+coll, err)
		return
	}
	if member {
		// The patch may move the document under another group.
		if err := a.check(ctx, merged); err != nil {
			apierrors.Respond(w, h.Log, "update "+coll, err)
			return
		}
	}
	g, isGroup := merged.(*models.Group)
	if _, counted := patch["userCount"]; isGroup && counted && !a.v.Admin {
		n, err := h.Members.MemberCount(ctx, id)
		if err != nil {
			apierrors.Respond(w, h.Log, "update "+coll, err)
			return
		}
		g.UserCount = int32(n)
	}
	set, err := setFields(merged, patch)
	if err != nil {
		apierrors.Respond(w, h.Log, "update "+coll, err)
		return
	}
	if len(set) > 0 {
		if err := h.Store.Update(ctx, coll, id, set); err != nil {
			apierrors.Respond(w, h.Log, "update "+coll, err)
			return
		}
	}
	if isGroup && !member {
		g.GroupCode = ""
	}
	httpjson.Write(w, http.StatusOK, merged)
}

// merge overlays patch onto doc and decodes the result into a fresh model.
func merge(coll string, doc any, patch map[string]json.RawMessage) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	if raw, err = json.Marshal(fields); err != nil {
		return nil, err
	}
	merged := newDoc(coll)
	if err := json.Unmarshal(raw, merged); err != nil {
		return nil, fmt.Errorf("malformed patch: %w", err)
	}
	return merged, nil
}

// setFields picks the patched fields from merged in their stored (BSON)
// form, so numbers keep their integer type and ids stay ObjectIDs. Keys the
// model does not expose over JSON are dropped.
func setFields(merged any, patch map[string]json.RawMessage) (bson.M, error) {
	raw, err := bson.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var stored bson.M
	if err := bson.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	exposed, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var public map[string]json.RawMessage
	if err := json.Unmarshal(exposed, &public); err != nil {
		return nil, err
	}
	set := bson.M{}
	for k := range patch {
		if _, ok := public[k]; !ok {
			continue
		}
		if v, ok := stored[k]; ok {
			set[k] = v
		}
	}
	return set, nil
}

// HandleDelete removes a document together with whatever hangs off it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	coll, u, ok := resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "collections.delete")
	defer cancel()

	id := chi.URLParam(r, "id")
	doc, err := h.load(ctx, r, coll, id)
	if err == nil {
		err = h.accessFor(authz.Viewer(r)).check(ctx, doc)
	}
	if err == nil {
		err = guard(u, doc)
	}
	if err == nil {
		err = h.remove(ctx, u, coll, id)
	}
	if err != nil {
		apierrors.Respond(w, h.Log, "delete "+coll, err)
		return
	}
	h.Log.Debug("document deleted", zap.String("collection", coll), zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(ctx context.Context, u *auth.TokenUser, coll, id string) error {
	if fn, ok := h.deleters[coll]; ok {
		return fn(ctx, u, id)
	}
	return h.Store.Delete(ctx, coll, id)
}
