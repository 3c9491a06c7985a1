// internal/domain/models/user.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account. Mail is stored case-folded and is unique.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	Mail         string             `bson:"mail" json:"mail" validate:"required,email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Name         string             `bson:"name" json:"name" validate:"required,max=120"`
	Admin        bool               `bson:"admin,omitempty" json:"admin,omitempty"`
}

// Role returns the role carried in issued tokens.
func (u User) Role() string {
	if u.Admin {
		return RoleAdmin
	}
	return RoleUser
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
