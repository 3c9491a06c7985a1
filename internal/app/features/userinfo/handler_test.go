package userinfo_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/app/features/userinfo"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRouter(t *testing.T) (chi.Router, *testutil.Fixtures) {
	r, fx, _ := newAccountRouter(t)
	return r, fx
}

// newAccountRouter also returns the store memberships live in.
func newAccountRouter(t *testing.T) (chi.Router, *testutil.Fixtures, *testutil.MemStorage) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	mem := testutil.NewMemStorage()
	mem.Unique(storage.UserGroup, "userId", "groupId")
	members := membership.New(mem, nil, membership.WithSettleDelay(0))
	r := chi.NewRouter()
	userinfo.Routes(r, userinfo.NewHandler(db, members, nil, nil))
	return r, testutil.NewFixtures(t, db), mem
}

func TestServeUserInfo(t *testing.T) {
	r, fx := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	plain := fx.CreateUser(ctx, "Pat", "pat@example.com", "hash", false)
	admin := fx.CreateUser(ctx, "Ada", "ada@example.com", "hash", true)

	tests := []struct {
		name     string
		user     models.User
		wantRole string
	}{
		{"plain account", plain, models.RoleUser},
		{"admin account", admin, models.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := testutil.TestUser{ID: tt.user.ID.Hex(), Name: tt.user.Name, Role: models.RoleUser}
			rec := testutil.NewRecorder()
			r.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/users/me", nil, caller))
			rec.AssertStatus(t, http.StatusOK)

			var got struct {
				ID   string `json:"_id"`
				Mail string `json:"mail"`
				Role string `json:"role"`
			}
			rec.DecodeJSON(t, &got)
			if got.ID != tt.user.ID.Hex() || got.Mail != tt.user.Mail || got.Role != tt.wantRole {
				t.Errorf("response = %+v", got)
			}
		})
	}
}

func TestServeUserInfo_Rejects(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"no user", testutil.NewRequest(http.MethodGet, "/users/me", nil), http.StatusUnauthorized},
		{"bad id", testutil.NewAuthenticatedRequest(http.MethodGet, "/users/me", nil,
			testutil.TestUser{ID: "nope", Role: models.RoleUser}), http.StatusUnauthorized},
		{"unknown account", testutil.NewAuthenticatedRequest(http.MethodGet, "/users/me", nil,
			testutil.TestUser{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			r.ServeHTTP(rec, tt.req)
			rec.AssertStatus(t, tt.want)
		})
	}
}
