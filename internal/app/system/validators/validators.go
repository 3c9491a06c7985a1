// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the inventory collections (if missing) and attaches
// JSON-Schema validators. Servers without collMod support (some DocumentDB
// versions) are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("groups", groupsSchema())
	ensure("userGroup", userGroupSchema())
	ensure("properties", propertiesSchema())
	ensure("zones", zonesSchema())
	ensure("items", itemsSchema())
	ensure("logs", logsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var (
	nonBlank   = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	objectID   = bson.M{"bsonType": "objectId"}
	optionalID = bson.M{"bsonType": bson.A{"objectId", "null"}}
	stringList = bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}}
)

func schema(required bson.A, props bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

func usersSchema() bson.M {
	return schema(bson.A{"mail", "passwordHash", "name"}, bson.M{
		"mail":         nonBlank,
		"passwordHash": nonBlank,
		"name":         nonBlank,
		"admin":        bson.M{"bsonType": "bool"},
	})
}

func groupsSchema() bson.M {
	return schema(bson.A{"name", "userCount", "groupCode"}, bson.M{
		"name":      nonBlank,
		"userCount": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
		"userMax":   bson.M{"bsonType": bson.A{"int", "long", "null"}, "minimum": 1},
		"groupCode": bson.M{"bsonType": "string", "pattern": "^[A-Za-z0-9]{8}$"},
		"tags":      stringList,
	})
}

func userGroupSchema() bson.M {
	return schema(bson.A{"userId", "groupId"}, bson.M{
		"userId":  objectID,
		"groupId": objectID,
	})
}

func propertiesSchema() bson.M {
	return schema(bson.A{"name", "groupId"}, bson.M{
		"name":      nonBlank,
		"direction": bson.M{"bsonType": "string"},
		"groupId":   objectID,
		"userId":    optionalID,
	})
}

func zonesSchema() bson.M {
	return schema(bson.A{"name", "propertyId"}, bson.M{
		"name":         nonBlank,
		"private":      bson.M{"bsonType": "bool"},
		"propertyId":   objectID,
		"userId":       optionalID,
		"parentZoneId": optionalID,
	})
}

func itemsSchema() bson.M {
	return schema(bson.A{"name", "zoneId"}, bson.M{
		"name":        nonBlank,
		"description": bson.M{"bsonType": "string"},
		"pictureUrl":  bson.M{"bsonType": "string"},
		"zoneId":      objectID,
		"values": bson.M{
			"bsonType": "array",
			"items": bson.M{
				"bsonType": "object",
				"required": bson.A{"name"},
				"properties": bson.M{
					"name":  nonBlank,
					"value": bson.M{"bsonType": "string"},
				},
			},
		},
		"tags": stringList,
	})
}

func logsSchema() bson.M {
	return schema(bson.A{"description", "time"}, bson.M{
		"description": bson.M{"bsonType": "string"},
		"time":        bson.M{"bsonType": "date"},
		"groupId":     objectID,
		"userId":      objectID,
	})
}
