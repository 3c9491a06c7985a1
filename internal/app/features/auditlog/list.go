package auditlog

import (
	"net/http"

	apierrors "github.com/dalemusser/inventoryhub/internal/app/features/errors"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/paging"
	"github.com/dalemusser/inventoryhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeList handles GET /logs/group/{id}. Admins may read any group's
// activity; everyone else only that of groups they belong to.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "")
		return
	}
	gid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Respond(w, h.Log, "activity", membership.ErrInvalidIdentifier)
		return
	}
	page := paging.Parse(r)
	filter, err := filterFrom(r, gid, page)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "activity list")
	defer cancel()

	if !authz.IsAdmin(r) {
		member, err := h.Members.CheckUserInGroup(ctx, gid, userID)
		if err != nil {
			apierrors.Respond(w, h.Log, "activity", err)
			return
		}
		if !member {
			apierrors.Respond(w, h.Log, "activity", authz.ErrForbidden)
			return
		}
	}

	entries, err := h.Logs.Query(ctx, filter)
	if err != nil {
		apierrors.Respond(w, h.Log, "activity query", err)
		return
	}
	total, err := h.Logs.Count(ctx, filter)
	if err != nil {
		apierrors.Respond(w, h.Log, "activity count", err)
		return
	}
	httpjson.Write(w, http.StatusOK, paging.NewResult(page, entries, total))
}
