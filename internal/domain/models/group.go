// internal/domain/models/group.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a set of users sharing an inventory.
//
// NOTE:
//   - UserCount is a denormalized count of userGroup relations. It is kept
//     in step by every writer that changes membership; the store does not
//     enforce it.
//   - UserMax nil means unlimited.
type Group struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	Name      string             `bson:"name" json:"name" validate:"required,max=120"`
	UserCount int32              `bson:"userCount" json:"userCount" validate:"gte=0"`
	UserMax   *int32             `bson:"userMax,omitempty" json:"userMax,omitempty" validate:"omitempty,gte=1"`
	GroupCode string             `bson:"groupCode" json:"groupCode" validate:"required,len=8,alphanum"`
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
}

// Full reports whether the group has reached its capacity.
func (g Group) Full() bool {
	return g.UserMax != nil && g.UserCount >= *g.UserMax
}
