// internal/domain/models/log.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Log is an activity record written by the server on group changes.
type Log struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	Description string             `bson:"description" json:"description"`
	Time        time.Time          `bson:"time" json:"time"`
	GroupID     primitive.ObjectID `bson:"groupId" json:"groupId"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
}
