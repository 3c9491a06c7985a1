// internal/domain/models/item.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemValue is a free-form attribute on an item (e.g. "color" = "red").
type ItemValue struct {
	Name  string `bson:"name" json:"name" validate:"required"`
	Value string `bson:"value" json:"value"`
}

// Item is a thing stored in a zone.
type Item struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	Name        string             `bson:"name" json:"name" validate:"required,max=120"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	PictureURL  string             `bson:"pictureUrl,omitempty" json:"pictureUrl,omitempty" validate:"omitempty,url"`
	ZoneID      primitive.ObjectID `bson:"zoneId" json:"zoneId" validate:"required"`
	Values      []ItemValue        `bson:"values,omitempty" json:"values,omitempty" validate:"dive"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
}
