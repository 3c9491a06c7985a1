package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures inserts test documents straight into a test database.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, collection string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("insert test %s: %v", collection, err)
	}
}

// CreateUser creates a user with the given password hash.
func (f *Fixtures) CreateUser(ctx context.Context, name, mail, passwordHash string, admin bool) models.User {
	f.t.Helper()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Mail:         text.Fold(mail),
		PasswordHash: passwordHash,
		Admin:        admin,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateGroup creates a group with no members. userMax 0 means unlimited.
func (f *Fixtures) CreateGroup(ctx context.Context, name, code string, userMax int32) models.Group {
	f.t.Helper()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		GroupCode: code,
	}
	if userMax > 0 {
		g.UserMax = &userMax
	}
	f.insert(ctx, "groups", g)
	return g
}

// AddMember inserts the relation and bumps the group's userCount.
func (f *Fixtures) AddMember(ctx context.Context, groupID, userID primitive.ObjectID) models.UserGroup {
	f.t.Helper()
	rel := models.UserGroup{ID: primitive.NewObjectID(), GroupID: groupID, UserID: userID}
	f.insert(ctx, "userGroup", rel)
	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, map[string]any{"$inc": map[string]any{"userCount": int32(1)}})
	if err != nil {
		f.t.Fatalf("bump userCount: %v", err)
	}
	return rel
}

// CreateProperty creates a shared property in a group.
func (f *Fixtures) CreateProperty(ctx context.Context, name string, groupID primitive.ObjectID) models.Property {
	f.t.Helper()
	p := models.Property{ID: primitive.NewObjectID(), Name: name, GroupID: groupID}
	f.insert(ctx, "properties", p)
	return p
}

// CreateZone creates a zone; a nil parent makes it top-level.
func (f *Fixtures) CreateZone(ctx context.Context, name string, propertyID primitive.ObjectID, parent *primitive.ObjectID) models.Zone {
	f.t.Helper()
	z := models.Zone{ID: primitive.NewObjectID(), Name: name, PropertyID: propertyID, ParentZoneID: parent}
	f.insert(ctx, "zones", z)
	return z
}

// CreateItem creates an item in a zone.
func (f *Fixtures) CreateItem(ctx context.Context, name string, zoneID primitive.ObjectID) models.Item {
	f.t.Helper()
	it := models.Item{ID: primitive.NewObjectID(), Name: name, ZoneID: zoneID}
	f.insert(ctx, "items", it)
	return it
}
