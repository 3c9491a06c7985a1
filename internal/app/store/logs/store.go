// Package logs records group activity (creation, joins, leaves) in the
// logs collection and reads it back newest first.
package logs

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event kinds written into the description.
const (
	EventGroupCreated = "group_created"
	EventGroupDeleted = "group_deleted"
	EventJoined       = "member_joined"
	EventLeft         = "member_left"
)

// QueryFilter defines filters for querying activity.
type QueryFilter struct {
	GroupID   *primitive.ObjectID
	UserID    *primitive.ObjectID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages activity log records.
type Store struct {
	c *mongo.Collection
}

// New creates a new logs Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("logs")}
}

// Record writes one activity entry.
func (s *Store) Record(ctx context.Context, event string, groupID, userID primitive.ObjectID, detail string) error {
	desc := event
	if detail != "" {
		desc = fmt.Sprintf("%s: %s", event, detail)
	}
	return s.Log(ctx, models.Log{Description: desc, GroupID: groupID, UserID: userID})
}

// Log inserts entry, filling in its id and time when unset.
func (s *Store) Log(ctx context.Context, entry models.Log) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, entry)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.GroupID != nil {
		query["groupId"] = *filter.GroupID
	}
	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["time"] = timeQuery
	}
	return query
}

// Query retrieves entries matching filter, newest first. Limit defaults
// to 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]models.Log, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.Log{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of entries matching filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// DeleteBefore removes entries older than cutoff and returns how many.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"time": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
