package collections

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
)

// access decides, for one request, which documents the caller may touch.
// Admins may touch anything. Everyone else is limited to documents under
// groups they belong to, plus their own membership relations. Membership
// lookups are memoized for the request.
type access struct {
	h      *Handler
	v      inventory.Viewer
	member map[string]bool
}

func (h *Handler) accessFor(v inventory.Viewer) *access {
	return &access{h: h, v: v, member: map[string]bool{}}
}

// inGroup reports whether the caller belongs to gid.
func (a *access) inGroup(ctx context.Context, gid string) (bool, error) {
	if a.v.Admin {
		return true, nil
	}
	if gid == "" {
		return false, nil
	}
	if ok, seen := a.member[gid]; seen {
		return ok, nil
	}
	ok, err := a.h.Members.CheckUserInGroup(ctx, gid, a.v.UserID)
	if err != nil {
		return false, err
	}
	a.member[gid] = ok
	return ok, nil
}

// allows reports whether the caller may read or change doc.
func (a *access) allows(ctx context.Context, doc any) (bool, error) {
	if a.v.Admin {
		return true, nil
	}
	if rel, ok := doc.(*models.UserGroup); ok && rel.UserID.Hex() == a.v.UserID {
		return true, nil
	}
	gid, err := a.h.Inventory.GroupOfDoc(ctx, doc)
	if err != nil {
		return false, err
	}
	return a.inGroup(ctx, gid)
}

// check is allows as an error.
func (a *access) check(ctx context.Context, doc any) error {
	ok, err := a.allows(ctx, doc)
	if err != nil {
		return err
	}
	if !ok {
		return authz.ErrForbidden
	}
	return nil
}

// read lets the caller read doc. A group stays readable to non-members
// with its join code removed: joining reads the group before the caller's
// relation exists, and leaving reads it after the relation is gone.
func (a *access) read(ctx context.Context, doc any) error {
	ok, err := a.allows(ctx, doc)
	if err != nil || ok {
		return err
	}
	if g, isGroup := doc.(*models.Group); isGroup {
		g.GroupCode = ""
		return nil
	}
	return authz.ErrForbidden
}

// admit runs the write-side checks for a new document. Inventory needs
// membership of its group; a relation needs room in the group. A parent
// that cannot be resolved is left for the inventory service to reject.
func (a *access) admit(ctx context.Context, doc any) error {
	switch d := doc.(type) {
	case *models.Group:
		return nil
	case *models.UserGroup:
		return a.h.hasRoom(ctx, d.GroupID.Hex())
	}
	gid, err := a.h.Inventory.GroupOfDoc(ctx, doc)
	if err != nil || gid == "" {
		return err
	}
	ok, err := a.inGroup(ctx, gid)
	if err != nil {
		return err
	}
	if !ok {
		return authz.ErrForbidden
	}
	return nil
}

// hasRoom fails with ErrGroupFull when gid already holds userMax relations.
func (h *Handler) hasRoom(ctx context.Context, gid string) error {
	var g models.Group
	if err := h.Store.Get(ctx, storage.Groups, gid, &g); err != nil {
		return err
	}
	if g.UserMax == nil {
		return nil
	}
	n, err := h.Members.MemberCount(ctx, gid)
	if err != nil {
		return err
	}
	if int32(n) >= *g.UserMax {
		return membership.ErrGroupFull
	}
	return nil
}

// only keeps the elements of in the caller may see.
func only[T any](ctx context.Context, a *access, in []T) ([]T, error) {
	out := make([]T, 0, len(in))
	for i := range in {
		ok, err := a.allows(ctx, &in[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, in[i])
		}
	}
	return out, nil
}

// countOnly reports whether patch touches nothing but userCount, which is
// all a leave sends once its relation is gone.
func countOnly(patch map[string]json.RawMessage) bool {
	_, ok := patch["userCount"]
	return ok && len(patch) == 1
}

var errNotListable = fmt.Errorf("%w: groups can only be looked up by groupCode", authz.ErrForbidden)
