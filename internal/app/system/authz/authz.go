// Package authz answers who the caller is and what the generic document API
// lets them touch.
package authz

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/auth"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrForbidden is returned by operations the caller may not perform.
var ErrForbidden = errors.New("forbidden")

// UserCtx returns the user's role (lowercased), name, id and a found flag.
// A missing user or a malformed id yields "visitor", "", NilObjectID, false,
// so ok=true always comes with a usable id.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the caller is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// Viewer is the caller as the inventory listings see them.
func Viewer(r *http.Request) inventory.Viewer {
	_, _, uid, ok := UserCtx(r)
	if !ok {
		return inventory.Viewer{}
	}
	return inventory.Viewer{UserID: uid.Hex(), Admin: IsAdmin(r)}
}

// AdminOnly reports whether collection is restricted to admins on the
// generic document API. Accounts and activity logs are; inventory data is
// open to any signed-in user.
func AdminOnly(collection string) bool {
	return collection == storage.Users || collection == storage.Logs
}

// CanAccess reports whether the caller may use collection through the
// generic document API.
func CanAccess(r *http.Request, collection string) bool {
	if _, _, _, ok := UserCtx(r); !ok {
		return false
	}
	return !AdminOnly(collection) || IsAdmin(r)
}
