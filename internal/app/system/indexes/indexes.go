// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"groups", ensureGroups},
		{"userGroup", ensureUserGroup},
		{"properties", ensureProperties},
		{"zones", ensureZones},
		{"items", ensureItems},
		{"logs", ensureLogs},
	}
	var problems []string
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

// duplicateHints tells the operator how to find rows blocking a unique index.
var duplicateHints = map[string]string{
	"userGroup": `db.userGroup.aggregate([{ $group: { _id: { u: "$userId", g: "$groupId" }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
	"users":     `db.users.aggregate([{ $group: { _id: "$mail", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
	"groups":    `db.groups.aggregate([{ $group: { _id: "$groupCode", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`,
}

type desired struct {
	model  mongo.IndexModel
	name   string
	unique *bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique
	}
	return d
}

func (d desired) isUnique() bool { return d.unique != nil && *d.unique }

func (d desired) fields(coll *mongo.Collection, start time.Time) []zap.Field {
	return []zap.Field{
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", d.isUnique()),
		zap.String("took", time.Since(start).String()),
	}
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// createErr explains a failed CreateOne, pointing at duplicates when a
// unique index cannot be built.
func (d desired) createErr(coll *mongo.Collection, err error) string {
	if isDuplicateKeyErr(err) && d.isUnique() {
		hint := ""
		if q, ok := duplicateHints[coll.Name()]; ok {
			hint = ": duplicates exist. Example finder:\n" + q
		}
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll.Name(), d.name, hint)
	}
	return fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err)
}

// replace drops old and creates d in its place.
func (d desired) replace(ctx context.Context, coll *mongo.Collection, old string) error {
	if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("%s(%s): drop %s failed: %v", coll.Name(), d.name, old, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return errors.New(d.createErr(coll, err))
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		zap.L().Info("ensuring index", d.fields(coll, start)...)

		if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
			switch {
			case sameBoolPtr(d.unique, ex.Unique) && (d.name == "" || ex.Name == d.name):
				zap.L().Info("reusing existing index", d.fields(coll, start)...)
			case sameBoolPtr(d.unique, ex.Unique):
				// Same keys and options under another name: align the name.
				if err := d.replace(ctx, coll, ex.Name); err != nil {
					zap.L().Warn("index rename failed", append(d.fields(coll, start), zap.Error(err))...)
					errs = append(errs, err.Error())
					continue
				}
				zap.L().Info("index renamed", append(d.fields(coll, start), zap.String("from", ex.Name))...)
			default:
				// Options mismatch (e.g., upgrading to unique).
				if err := d.replace(ctx, coll, ex.Name); err != nil {
					zap.L().Warn("index recreate failed", append(d.fields(coll, start), zap.Error(err))...)
					errs = append(errs, err.Error())
					continue
				}
				zap.L().Info("index dropped and recreated", d.fields(coll, start)...)
			}
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			zap.L().Info("index ensured", append(d.fields(coll, start), zap.String("created_name", created))...)
			continue
		}
		if isOptionsConflictErr(err) {
			if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
				if sameBoolPtr(d.unique, ex.Unique) {
					zap.L().Info("reusing existing index (post-conflict)", d.fields(coll, start)...)
					continue
				}
				if rerr := d.replace(ctx, coll, ex.Name); rerr != nil {
					errs = append(errs, rerr.Error())
					continue
				}
				zap.L().Info("index dropped and recreated (post-conflict)", d.fields(coll, start)...)
				continue
			}
		}
		zap.L().Warn("index ensure failed", append(d.fields(coll, start), zap.Error(err))...)
		errs = append(errs, d.createErr(coll, err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Per-collection index sets                                                  */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mail", Value: 1}},
			Options: options.Index().SetName("uniq_users_mail").SetUnique(true),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("groups"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "groupCode", Value: 1}},
			Options: options.Index().SetName("uniq_groups_code").SetUnique(true),
		},
	})
}

// ensureUserGroup enforces one relation per (userId, groupId). Join relies
// on the resulting duplicate-key error to report AlreadyMember.
func ensureUserGroup(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("userGroup"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "groupId", Value: 1}},
			Options: options.Index().SetName("uniq_usergroup_user_group").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "groupId", Value: 1}},
			Options: options.Index().SetName("idx_usergroup_group"),
		},
	})
}

func ensureProperties(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("properties"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "groupId", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_properties_group_id"),
		},
	})
}

func ensureZones(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("zones"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "propertyId", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_zones_property_id"),
		},
		{
			Keys:    bson.D{{Key: "parentZoneId", Value: 1}},
			Options: options.Index().SetName("idx_zones_parent"),
		},
	})
}

func ensureItems(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("items"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "zoneId", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_items_zone_id"),
		},
	})
}

func ensureLogs(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("logs"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "time", Value: -1}},
			Options: options.Index().SetName("idx_logs_time"),
		},
		{
			Keys:    bson.D{{Key: "groupId", Value: 1}, {Key: "time", Value: -1}},
			Options: options.Index().SetName("idx_logs_group_time"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "time", Value: -1}},
			Options: options.Index().SetName("idx_logs_user_time"),
		},
	})
}
