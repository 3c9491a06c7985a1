package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/system/validators"
	"github.com/dalemusser/inventoryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool)
	for _, name := range names {
		have[name] = true
	}
	for _, want := range []string{"users", "groups", "userGroup", "properties", "zones", "items", "logs"} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	oid := primitive.NewObjectID()
	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{"valid user", "users", bson.M{"mail": "a@example.com", "passwordHash": "x", "name": "Alice"}, false},
		{"user missing hash", "users", bson.M{"mail": "b@example.com", "name": "Bob"}, true},
		{"user blank name", "users", bson.M{"mail": "c@example.com", "passwordHash": "x", "name": "   "}, true},

		{"valid group", "groups", bson.M{"name": "Family", "userCount": int32(0), "groupCode": "Ab3dE6g8"}, false},
		{"group with cap", "groups", bson.M{"name": "Club", "userCount": int32(2), "userMax": int32(5), "groupCode": "Zz9yY8xX"}, false},
		{"group negative count", "groups", bson.M{"name": "Bad", "userCount": int32(-1), "groupCode": "Qq1wW2eE"}, true},
		{"group zero cap", "groups", bson.M{"name": "Bad", "userCount": int32(0), "userMax": int32(0), "groupCode": "Rr1tT2yY"}, true},
		{"group short code", "groups", bson.M{"name": "Bad", "userCount": int32(0), "groupCode": "abc"}, true},

		{"valid relation", "userGroup", bson.M{"userId": oid, "groupId": primitive.NewObjectID()}, false},
		{"relation string ids", "userGroup", bson.M{"userId": oid.Hex(), "groupId": oid.Hex()}, true},

		{"valid property", "properties", bson.M{"name": "House", "groupId": oid}, false},
		{"private property", "properties", bson.M{"name": "Flat", "groupId": oid, "userId": oid}, false},
		{"property missing group", "properties", bson.M{"name": "House"}, true},

		{"valid zone", "zones", bson.M{"name": "Garage", "private": false, "propertyId": oid}, false},
		{"nested zone", "zones", bson.M{"name": "Shelf", "private": false, "propertyId": oid, "parentZoneId": primitive.NewObjectID()}, false},
		{"zone string parent", "zones", bson.M{"name": "Shelf", "propertyId": oid, "parentZoneId": "nope"}, true},

		{"valid item", "items", bson.M{"name": "Drill", "zoneId": oid, "values": bson.A{bson.M{"name": "color", "value": "red"}}}, false},
		{"item value without name", "items", bson.M{"name": "Drill", "zoneId": oid, "values": bson.A{bson.M{"value": "red"}}}, true},

		{"valid log", "logs", bson.M{"description": "member_joined", "time": time.Now(), "groupId": oid, "userId": oid}, false},
		{"log missing time", "logs", bson.M{"description": "member_joined"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Errorf("expected %s insert to be rejected", tt.coll)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert into %s failed: %v", tt.coll, err)
			}
		})
	}
}
