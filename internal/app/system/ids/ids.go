// Package ids turns the identifier shapes a document store hands back into
// one canonical string.
//
// Identifiers arrive either as a bare string ("507f1f77bcf86cd799439011")
// or boxed the way MongoDB extended JSON encodes an ObjectID
// ({"$oid": "507f1f77bcf86cd799439011"}). Adapters decode into Identifier at
// the boundary; everything past that point works with canonical strings.
package ids

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrInvalid is returned when a value does not normalize to a usable id.
var ErrInvalid = errors.New("invalid identifier")

// Kind tags which wire form an Identifier was decoded from.
type Kind uint8

const (
	Plain Kind = iota
	Boxed
)

// Identifier is the tagged union of the two wire forms.
type Identifier struct {
	Kind  Kind
	Value string
}

// FromString returns a Plain identifier.
func FromString(s string) Identifier { return Identifier{Kind: Plain, Value: s} }

// FromObjectID returns a Boxed identifier for oid.
func FromObjectID(oid primitive.ObjectID) Identifier {
	return Identifier{Kind: Boxed, Value: oid.Hex()}
}

// String returns the canonical form.
func (id Identifier) String() string { return id.Value }

// IsZero reports whether the identifier carries no value.
func (id Identifier) IsZero() bool { return id.Value == "" }

type boxed struct {
	OID *string          `json:"$oid"`
	ID  *json.RawMessage `json:"_id"`
}

// UnmarshalJSON accepts "x", {"$oid":"x"}, {"_id":"x"}, {"_id":{"$oid":"x"}},
// and null.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = Identifier{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FromString(s)
		return nil
	}
	var b boxed
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("identifier: %w", err)
	}
	switch {
	case b.OID != nil:
		*id = Identifier{Kind: Boxed, Value: *b.OID}
		return nil
	case b.ID != nil:
		return id.UnmarshalJSON(*b.ID)
	}
	return fmt.Errorf("identifier: unrecognized shape %s", data)
}

// MarshalJSON writes the canonical string, which every reader accepts.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value)
}

// Normalize returns the canonical string for v and whether there was one.
// It never panics: a value whose string conversion fails is logged and
// reported as absent.
func Normalize(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case Identifier:
		return x.Value, true
	case *Identifier:
		if x == nil {
			return "", false
		}
		return x.Value, true
	case primitive.ObjectID:
		return x.Hex(), true
	case *primitive.ObjectID:
		if x == nil {
			return "", false
		}
		return x.Hex(), true
	case map[string]any:
		if oid, ok := x["$oid"]; ok {
			return Normalize(oid)
		}
		return stringify(v)
	case map[string]string:
		if oid, ok := x["$oid"]; ok {
			return oid, true
		}
		return stringify(v)
	}
	return stringify(v)
}

func stringify(v any) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("identifier conversion failed",
				zap.String("type", fmt.Sprintf("%T", v)),
				zap.Any("panic", r))
			s, ok = "", false
		}
	}()
	if st, isStringer := v.(fmt.Stringer); isStringer {
		return st.String(), true
	}
	return fmt.Sprint(v), true
}

// IsValid reports whether v normalizes to a non-empty string.
func IsValid(v any) bool {
	s, ok := Normalize(v)
	return ok && s != ""
}

// Must normalizes v or returns ErrInvalid. Callers use it to fail fast
// before any I/O.
func Must(v any) (string, error) {
	s, ok := Normalize(v)
	if !ok || s == "" {
		return "", ErrInvalid
	}
	return s, nil
}

// ObjectID normalizes v and parses it as a MongoDB ObjectID.
func ObjectID(v any) (primitive.ObjectID, error) {
	s, err := Must(v)
	if err != nil {
		return primitive.NilObjectID, err
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return oid, nil
}
