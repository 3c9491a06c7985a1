// internal/domain/models/zone.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Zone is an area inside a property. Zones nest through ParentZoneID;
// a top-level zone has no parent (older data points it at the property).
type Zone struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"_id,omitzero"`
	Name         string              `bson:"name" json:"name" validate:"required,max=120"`
	Private      bool                `bson:"private" json:"private"`
	PropertyID   primitive.ObjectID  `bson:"propertyId" json:"propertyId" validate:"required"`
	UserID       *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	ParentZoneID *primitive.ObjectID `bson:"parentZoneId,omitempty" json:"parentZoneId,omitempty"`
}

// TopLevel reports whether z hangs directly off its property.
func (z Zone) TopLevel() bool {
	return z.ParentZoneID == nil || *z.ParentZoneID == z.PropertyID
}
