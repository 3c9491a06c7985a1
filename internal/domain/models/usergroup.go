// internal/domain/models/usergroup.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserGroup is the membership relation between a user and a group.
// Exactly one document per (userId, groupId); see indexes.ensureUserGroup.
type UserGroup struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	GroupID primitive.ObjectID `bson:"groupId" json:"groupId" validate:"required"`
	UserID  primitive.ObjectID `bson:"userId" json:"userId" validate:"required"`
}
