// Package storage defines the collection-keyed document interface the
// membership protocol and the inventory helpers are written against.
//
// Two bindings implement it: apiclient (HTTP against the document API) and
// mongostore (MongoDB, used by the server). testutil.MemStorage backs unit
// tests.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Collection names shared by every binding.
const (
	Groups     = "groups"
	UserGroup  = "userGroup"
	Properties = "properties"
	Zones      = "zones"
	Items      = "items"
	Users      = "users"
	Logs       = "logs"
)

// Collections lists every collection the API exposes.
var Collections = []string{Groups, UserGroup, Properties, Zones, Items, Users, Logs}

var (
	// ErrNotFound is returned by Get/Update/Delete when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by Create/Update when a unique constraint rejects
	// the write.
	ErrConflict = errors.New("document conflicts with an existing one")
)

// Filter matches documents whose fields equal the given values. Values for
// fields ending in "Id" are identifiers and are compared after
// normalization.
type Filter map[string]string

// Storage is the document store as the core sees it. Ids are canonical
// strings (see package ids). out arguments are pointers to a document or to
// a slice of documents.
type Storage interface {
	Get(ctx context.Context, collection, id string, out any) error
	Create(ctx context.Context, collection string, doc any) (string, error)
	// Update applies patch as a partial update ($set semantics).
	Update(ctx context.Context, collection, id string, patch any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter Filter, out any) error
}

// Known reports whether name is one of the API collections.
func Known(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// TransportError is a failed request against a remote binding. Message
// carries the server's own message when it sent one.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }
