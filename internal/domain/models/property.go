// internal/domain/models/property.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Property belongs to a group. A property with UserID set is private to
// that user.
type Property struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"_id,omitzero"`
	Name      string              `bson:"name" json:"name" validate:"required,max=120"`
	Direction string              `bson:"direction,omitempty" json:"direction,omitempty" validate:"max=240"`
	GroupID   primitive.ObjectID  `bson:"groupId" json:"groupId" validate:"required"`
	UserID    *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
}
