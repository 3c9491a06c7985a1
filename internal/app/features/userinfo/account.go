package userinfo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	userstore "github.com/dalemusser/inventoryhub/internal/app/store/users"
	"github.com/dalemusser/inventoryhub/internal/app/system/authutil"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/inputval"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var errAdminFlag = fmt.Errorf("%w: only admins can change the admin flag", authz.ErrForbidden)

// updateRequest is a partial account update. Absent fields are kept.
type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Mail     *string `json:"mail"`
	Password *string `json:"password"`
	Admin    *bool   `json:"admin"`
}

// changes normalizes the request the way registration does: trimmed name,
// folded mail, a password checked and hashed. It also returns the names of
// the fields being changed.
func (req updateRequest) changes(admin bool) (userstore.Changes, []string, error) {
	var (
		c      userstore.Changes
		fields []string
	)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c, nil, authutil.ErrNameRequired
		}
		c.Name = &name
		fields = append(fields, "name")
	}
	if req.Mail != nil {
		mail, err := authutil.NormalizeMail(*req.Mail)
		if err != nil {
			return c, nil, err
		}
		c.Mail = &mail
		fields = append(fields, "mail")
	}
	if req.Password != nil {
		if err := authutil.ValidatePassword(*req.Password); err != nil {
			return c, nil, err
		}
		hash, err := authutil.HashPassword(*req.Password)
		if err != nil {
			return c, nil, err
		}
		c.PasswordHash = &hash
		fields = append(fields, "password")
	}
	if req.Admin != nil {
		if !admin {
			return c, nil, errAdminFlag
		}
		c.Admin = req.Admin
		fields = append(fields, "admin")
	}
	return c, fields, nil
}

// HandleUpdateMe changes the caller's name, mail or password.
//
// Request format (every field optional):
//
//	{ "name": "...", "mail": "...", "password": "..." }
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return
	}
	h.update(w, r, uid, false)
}

// HandleUpdateUser is HandleUpdateMe for any account. Admin only; it may
// also set "admin".
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := target(w, r)
	if !ok {
		return
	}
	h.update(w, r, uid, true)
}

// HandleDeleteMe removes the caller's account after dropping its
// memberships.
func (h *Handler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return
	}
	h.remove(w, r, uid)
}

// HandleDeleteUser is HandleDeleteMe for any account. Admin only.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := target(w, r)
	if !ok {
		return
	}
	h.remove(w, r, uid)
}

// target resolves the {id} of an admin account route.
func target(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	if !authz.IsAdmin(r) {
		httpjson.Error(w, http.StatusForbidden, "")
		return primitive.NilObjectID, false
	}
	uid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid user id")
		return primitive.NilObjectID, false
	}
	return uid, true
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, uid primitive.ObjectID, admin bool) {
	req, ok := inputval.DecodeRequest[updateRequest](w, r)
	if !ok {
		return
	}
	c, fields, err := req.changes(admin)
	if errors.Is(err, authz.ErrForbidden) {
		httpjson.Error(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		httpjson.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "userinfo.update")
	defer cancel()

	u, err := h.Users.Update(ctx, uid, c)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		httpjson.Error(w, http.StatusNotFound, "account not found")
		return
	case errors.Is(err, userstore.ErrDuplicateMail):
		httpjson.Error(w, http.StatusConflict, "An account with this mail already exists")
		return
	case err != nil:
		apierrors.Respond(w, h.Log, "update account", err)
		return
	}
	_, _, actor, _ := authz.UserCtx(r)
	h.AuditLog.AccountUpdated(r, uid, actor, fields)
	httpjson.Write(w, http.StatusOK, toResponse(*u))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, uid primitive.ObjectID) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "userinfo.delete")
	defer cancel()

	if _, err := h.Users.GetByID(ctx, uid); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "account not found")
			return
		}
		apierrors.Respond(w, h.Log, "delete account", err)
		return
	}
	left, err := h.Members.LeaveAll(ctx, uid)
	if err != nil {
		apierrors.Respond(w, h.Log, "delete account", err)
		return
	}
	found, err := h.Users.Delete(ctx, uid)
	if err != nil {
		apierrors.Respond(w, h.Log, "delete account", err)
		return
	}
	if !found {
		httpjson.Error(w, http.StatusNotFound, "account not found")
		return
	}
	_, _, actor, _ := authz.UserCtx(r)
	h.AuditLog.AccountDeleted(r, uid, actor)
	h.Log.Info("account deleted", zap.String("user_id", uid.Hex()), zap.Int("memberships", left))
	w.WriteHeader(http.StatusNoContent)
}
