package browse_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/features/browse"
	"github.com/dalemusser/inventoryhub/internal/app/inventory"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/retry"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type env struct {
	router                     chi.Router
	member                     testutil.TestUser
	group, house, garage, item primitive.ObjectID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := testutil.NewMemStorage()
	e := &env{
		member: testutil.RegularUser(),
		group:  primitive.NewObjectID(),
		house:  primitive.NewObjectID(),
		garage: primitive.NewObjectID(),
		item:   primitive.NewObjectID(),
	}
	uid, err := primitive.ObjectIDFromHex(e.member.ID)
	if err != nil {
		t.Fatal(err)
	}
	s.Put(storage.Groups, e.group.Hex(), models.Group{Name: "Family", UserCount: 1, GroupCode: "ABCD1234"})
	s.Put(storage.UserGroup, primitive.NewObjectID().Hex(), models.UserGroup{GroupID: e.group, UserID: uid})
	s.Put(storage.Properties, e.house.Hex(), models.Property{Name: "House", GroupID: e.group})
	s.Put(storage.Zones, e.garage.Hex(), models.Zone{Name: "Garage", PropertyID: e.house})
	s.Put(storage.Items, e.item.Hex(), models.Item{Name: "Hammer", ZoneID: e.garage})

	members := membership.New(s, nil,
		membership.WithRetry(retry.Policy{MaxAttempts: 1, Delay: time.Millisecond}),
		membership.WithSettleDelay(0))
	e.router = chi.NewRouter()
	browse.Routes(e.router, browse.NewHandler(inventory.New(s, nil), members, nil))
	return e
}

func (e *env) get(t *testing.T, target string, user testutil.TestUser, want int, out any) {
	t.Helper()
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, target, nil, user))
	rec.AssertStatus(t, want)
	if out != nil && rec.Code == http.StatusOK {
		rec.DecodeJSON(t, out)
	}
}

func TestServeGroupProperties(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		user testutil.TestUser
		want int
	}{
		{"member", e.member, http.StatusOK},
		{"admin outside the group", testutil.AdminUser(), http.StatusOK},
		{"outsider", testutil.RegularUser(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var props []models.Property
			e.get(t, "/properties/group/"+e.group.Hex(), tt.user, tt.want, &props)
			if tt.want == http.StatusOK && len(props) != 1 {
				t.Errorf("properties = %+v", props)
			}
		})
	}
}

func TestListings(t *testing.T) {
	e := newEnv(t)

	var zones []models.Zone
	e.get(t, "/zones/property/"+e.house.Hex(), e.member, http.StatusOK, &zones)
	if len(zones) != 1 || zones[0].ID != e.garage {
		t.Errorf("zones = %+v", zones)
	}

	var sub []models.Zone
	e.get(t, "/zones/parent/"+e.garage.Hex(), e.member, http.StatusOK, &sub)
	if len(sub) != 0 {
		t.Errorf("sub-zones = %+v", sub)
	}

	var items []models.Item
	e.get(t, "/items/zone/"+e.garage.Hex(), e.member, http.StatusOK, &items)
	if len(items) != 1 || items[0].Name != "Hammer" {
		t.Errorf("items = %+v", items)
	}

	e.get(t, "/items/zone/not-an-id", e.member, http.StatusBadRequest, nil)
}

func TestListings_Outsider(t *testing.T) {
	e := newEnv(t)
	outsider := testutil.RegularUser()
	tests := []struct {
		name   string
		target string
		user   testutil.TestUser
		want   int
	}{
		{"property zones", "/zones/property/" + e.house.Hex(), outsider, http.StatusForbidden},
		{"sub-zones", "/zones/parent/" + e.garage.Hex(), outsider, http.StatusForbidden},
		{"zone items", "/items/zone/" + e.garage.Hex(), outsider, http.StatusForbidden},
		{"item ancestors", "/ancestors/" + e.item.Hex(), outsider, http.StatusForbidden},
		{"zone ancestors", "/ancestors/" + e.garage.Hex(), outsider, http.StatusForbidden},
		{"property ancestors", "/ancestors/" + e.house.Hex(), outsider, http.StatusForbidden},
		{"unknown zone", "/items/zone/" + primitive.NewObjectID().Hex(), outsider, http.StatusNotFound},
		{"admin outside the group", "/items/zone/" + e.garage.Hex(), testutil.AdminUser(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.get(t, tt.target, tt.user, tt.want, nil)
		})
	}
}

func TestServeAncestors(t *testing.T) {
	e := newEnv(t)
	var anc inventory.Ancestors
	e.get(t, "/ancestors/"+e.item.Hex(), e.member, http.StatusOK, &anc)
	if anc.Group == nil || anc.Group.Name != "Family" {
		t.Errorf("group = %+v", anc.Group)
	}
	if anc.Property == nil || anc.Property.ID != e.house {
		t.Errorf("property = %+v", anc.Property)
	}
}

func TestServeSearchAndTree(t *testing.T) {
	e := newEnv(t)

	var res inventory.SearchResult
	e.get(t, "/search/HAM", e.member, http.StatusOK, &res)
	if len(res.Items) != 1 {
		t.Errorf("search items = %+v", res.Items)
	}

	var tree []inventory.Node
	e.get(t, "/tree", e.member, http.StatusOK, &tree)
	if len(tree) != 1 || tree[0].Type != inventory.KindGroup || len(tree[0].Children) != 1 {
		t.Errorf("tree = %+v", tree)
	}

	e.get(t, "/tree", testutil.RegularUser(), http.StatusOK, &tree)
	if len(tree) != 0 {
		t.Errorf("outsider tree = %+v", tree)
	}
}

func TestRequiresUser(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/tree", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
