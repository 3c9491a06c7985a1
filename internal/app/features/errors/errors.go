// Package errors turns domain errors into JSON error responses and serves
// the API's not-found and method-not-allowed bodies.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/authz"
	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"go.uber.org/zap"
)

// Status maps membership, inventory and storage errors to HTTP statuses.
func Status(err error) int {
	switch {
	case stderrors.Is(err, membership.ErrInvalidIdentifier), stderrors.Is(err, ids.ErrInvalid):
		return http.StatusBadRequest
	case stderrors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, membership.ErrGroupNotFound), stderrors.Is(err, membership.ErrNotAMember),
		stderrors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, membership.ErrGroupFull), stderrors.Is(err, membership.ErrAlreadyMember),
		stderrors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, membership.ErrInvalidGroup), stderrors.Is(err, inventory.ErrInvalidParent):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, membership.ErrMembershipWriteFailed), stderrors.Is(err, membership.ErrLeaveFailed):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Respond writes err with its mapped status. Server faults are logged under
// op and answered with a generic message so driver errors never reach the
// client.
func Respond(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		if log != nil {
			log.Error(op+" failed", zap.Error(err))
		}
		httpjson.Error(w, status, "")
		return
	}
	httpjson.Error(w, status, err.Error())
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httpjson.Error(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpjson.Error(w, http.StatusMethodNotAllowed, "")
}
