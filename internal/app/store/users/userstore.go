package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/inventoryhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateMail is returned when attempting to create a user with a mail that already exists.
	ErrDuplicateMail = errors.New("a user with this mail already exists")
	errNoHash        = errors.New("user must have a password hash")
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByMail looks up a user by case-insensitive mail. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByMail(ctx context.Context, mail string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"mail": text.Fold(mail)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Mail is stored folded; the unique index on
// mail turns a second registration into ErrDuplicateMail.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.PasswordHash == "" {
		return models.User{}, errNoHash
	}
	u.ID = primitive.NewObjectID()
	u.Mail = text.Fold(u.Mail)
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateMail
		}
		return models.User{}, err
	}
	return u, nil
}

// Count returns the number of accounts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// PromoteAdmin sets the admin flag on the account with mail. It reports
// whether such an account exists.
func (s *Store) PromoteAdmin(ctx context.Context, mail string) (bool, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{"mail": text.Fold(mail)}, bson.M{"$set": bson.M{"admin": true}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Changes lists the account fields an update sets. Nil fields are left as
// they are. Mail is stored folded.
type Changes struct {
	Name         *string
	Mail         *string
	PasswordHash *string
	Admin        *bool
}

func (c Changes) set() bson.M {
	set := bson.M{}
	if c.Name != nil {
		set["name"] = *c.Name
	}
	if c.Mail != nil {
		set["mail"] = text.Fold(*c.Mail)
	}
	if c.PasswordHash != nil {
		set["passwordHash"] = *c.PasswordHash
	}
	if c.Admin != nil {
		set["admin"] = *c.Admin
	}
	return set
}

// Update applies c to the account id and returns the stored result. An
// unknown id yields mongo.ErrNoDocuments; a mail another account holds
// yields ErrDuplicateMail.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, c Changes) (*models.User, error) {
	set := c.set()
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}
	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if wafflemongo.IsDup(err) {
		return nil, ErrDuplicateMail
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes the account id. It reports whether the account existed.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
