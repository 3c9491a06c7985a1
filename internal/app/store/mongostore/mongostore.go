// Package mongostore is the MongoDB binding of storage.Storage used by the
// API server.
//
// Filter and patch values for "_id" and for fields ending in "Id" are
// identifiers and are stored as ObjectIDs; other filter values match their
// string form and, when they parse as one, their bool or number form.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Store struct {
	db  *mongo.Database
	log *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

func New(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

func (s *Store) coll(name string) *mongo.Collection { return s.db.Collection(name) }

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ids.ErrInvalid, id)
	}
	return oid, nil
}

// isIDField reports whether values of key are identifiers.
func isIDField(key string) bool {
	return key == "_id" || strings.HasSuffix(key, "Id")
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case wafflemongo.IsDup(err):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	}
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	return translate(s.coll(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(out))
}

func (s *Store) Create(ctx context.Context, collection string, doc any) (string, error) {
	res, err := s.coll(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", translate(err)
	}
	id, ok := ids.Normalize(res.InsertedID)
	if !ok || id == "" {
		return "", fmt.Errorf("insert into %s returned no id", collection)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch any) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set, err := toSet(patch)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return s.Get(ctx, collection, id, &bson.M{})
	}
	res, err := s.coll(collection).UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filter storage.Filter, out any) error {
	q, ok := toQuery(filter)
	if !ok {
		// An id filter that cannot be an ObjectID matches nothing.
		return decodeEmpty(out)
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll(collection).Find(ctx, q, opts)
	if err != nil {
		return translate(err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return err
	}
	return nil
}

// decodeEmpty sets the slice behind out to an empty slice.
func decodeEmpty(out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("query result must be a pointer to a slice, got %T", out)
	}
	v.Elem().Set(reflect.MakeSlice(v.Elem().Type(), 0, 0))
	return nil
}

func toQuery(filter storage.Filter) (bson.M, bool) {
	q := bson.M{}
	for k, v := range filter {
		if isIDField(k) {
			oid, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				return nil, false
			}
			q[k] = oid
			continue
		}
		alts := bson.A{v}
		if b, err := strconv.ParseBool(v); err == nil {
			alts = append(alts, b)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			alts = append(alts, n)
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			alts = append(alts, f)
		}
		if len(alts) == 1 {
			q[k] = v
		} else {
			q[k] = bson.M{"$in": alts}
		}
	}
	return q, true
}

// toSet turns a patch (a map or a bson-tagged struct) into a $set document.
// "_id" is never set; string values of id fields become ObjectIDs.
func toSet(patch any) (bson.M, error) {
	var m bson.M
	switch p := patch.(type) {
	case bson.M:
		m = p
	case map[string]any:
		m = bson.M(p)
	default:
		raw, err := bson.Marshal(patch)
		if err != nil {
			return nil, fmt.Errorf("encode patch: %w", err)
		}
		if err := bson.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode patch: %w", err)
		}
	}
	set := bson.M{}
	for k, v := range m {
		if k == "_id" {
			continue
		}
		if isIDField(k) {
			if str, ok := v.(string); ok {
				oid, err := objectID(str)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", k, err)
				}
				v = oid
			}
		}
		set[k] = v
	}
	return set, nil
}
