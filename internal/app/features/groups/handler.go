// Package groups serves the membership endpoints: create a group, join by
// code, leave, look up by code and list the caller's groups. Every change
// goes through the membership reconciler.
package groups

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/app/system/inputval"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Members   *membership.Reconciler
	Inventory *inventory.Service
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(members *membership.Reconciler, inv *inventory.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Members:   members,
		Inventory: inv,
		AuditLog:  audit,
		Log:       logger,
	}
}

type createRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	UserMax *int32 `json:"userMax" validate:"omitempty,gte=1"`
}

// leaveResponse reports the group after the leave. Deleted is set when the
// caller was the last member and the group went with them.
type leaveResponse struct {
	Group   models.Group `json:"group"`
	Deleted bool         `json:"deleted"`
}

func caller(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
	}
	return uid, ok
}

// HandleCreate creates a group and makes the caller its first member.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := inputval.DecodeRequest[createRequest](w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.create")
	defer cancel()

	g, err := h.Members.CreateGroup(ctx, uid, htmlsanitize.PlainText(req.Name), req.UserMax)
	if err != nil {
		apierrors.Respond(w, h.Log, "create group", err)
		return
	}
	h.AuditLog.GroupCreated(ctx, g.ID, uid, g.Name)
	h.AuditLog.MemberJoined(ctx, g.ID, uid)
	httpjson.Write(w, http.StatusCreated, g)
}

// HandleJoin adds the caller to the group behind the join code.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.join")
	defer cancel()

	g, err := h.Members.JoinByCode(ctx, uid, chi.URLParam(r, "code"))
	if err != nil {
		apierrors.Respond(w, h.Log, "join group", err)
		return
	}
	h.AuditLog.MemberJoined(ctx, g.ID, uid)
	httpjson.Write(w, http.StatusOK, g)
}

// HandleLeave removes the caller from a group. The last member out takes
// the group and its inventory with them.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.leave")
	defer cancel()

	gid := chi.URLParam(r, "id")
	g, err := h.Members.Leave(ctx, uid, gid)
	if err != nil {
		apierrors.Respond(w, h.Log, "leave group", err)
		return
	}
	h.AuditLog.MemberLeft(ctx, g.ID, uid)

	resp := leaveResponse{Group: g}
	left, err := h.Members.MemberCount(ctx, g.ID)
	if err != nil {
		h.Log.Warn("count members after leave", zap.String("group_id", g.ID.Hex()), zap.Error(err))
	} else if left == 0 {
		if err := h.removeGroup(ctx, g.ID, uid, "last member left"); err != nil {
			h.Log.Warn("delete empty group", zap.String("group_id", g.ID.Hex()), zap.Error(err))
		} else {
			resp.Deleted = true
		}
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// ServeByCode returns the group behind a join code.
func (h *Handler) ServeByCode(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "groups.code")
	defer cancel()

	g, err := h.Members.GroupByCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		apierrors.Respond(w, h.Log, "group by code", err)
		return
	}
	httpjson.Write(w, http.StatusOK, g)
}

// ServeMine lists the caller's groups.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.mine")
	defer cancel()

	groups, err := h.Members.GroupsForUser(ctx, uid)
	if err != nil {
		apierrors.Respond(w, h.Log, "list my groups", err)
		return
	}
	httpjson.Write(w, http.StatusOK, groups)
}

// DeleteGroup removes a group with its inventory and memberships on behalf
// of u, who must be an admin or a member of it.
func (h *Handler) DeleteGroup(ctx context.Context, u *auth.TokenUser, id string) error {
	gid, err := ids.ObjectID(id)
	if err != nil {
		return err
	}
	uid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return authz.ErrForbidden
	}
	if !u.IsAdmin() {
		member, err := h.Members.CheckUserInGroup(ctx, gid, uid)
		if err != nil {
			return err
		}
		if !member {
			return authz.ErrForbidden
		}
	}
	return h.removeGroup(ctx, gid, uid, "deleted")
}

func (h *Handler) removeGroup(ctx context.Context, gid, uid primitive.ObjectID, reason string) error {
	if err := h.Inventory.PurgeGroup(ctx, gid); err != nil {
		return err
	}
	if err := h.Members.DeleteGroup(ctx, gid); err != nil {
		return err
	}
	h.AuditLog.GroupDeleted(ctx, gid, uid, reason)
	return nil
}
