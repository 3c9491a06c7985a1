// Package userinfo serves the signed-in caller's own account, and lets
// admins edit or remove any account.
package userinfo

import (
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	userstore "github.com/dalemusser/inventoryhub/internal/app/store/users"
	"github.com/dalemusser/inventoryhub/internal/app/system/auditlog"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves account information for authenticated callers.
type Handler struct {
	Users    *userstore.Store
	Members  *membership.Reconciler
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

// NewHandler creates a userinfo handler over db. Deleting an account drops
// its memberships through members.
func NewHandler(db *mongo.Database, members *membership.Reconciler, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Users: userstore.New(db), Members: members, AuditLog: audit, Log: logger}
}

type response struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Mail  string `json:"mail"`
	Admin bool   `json:"admin"`
	Role  string `json:"role"`
}

// ServeUserInfo returns the caller's account.
//
// Response format:
//
//	{ "_id": "...", "name": "...", "mail": "...", "admin": bool, "role": "user" }
//
// The role reflects the stored account, so a promotion shows here before
// the caller's token is reissued.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "userinfo")
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		apierrors.Respond(w, h.Log, "userinfo", err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(*u))
}

func toResponse(u models.User) response {
	return response{ID: u.ID.Hex(), Name: u.Name, Mail: u.Mail, Admin: u.Admin, Role: u.Role()}
}
