package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStorage is an in-memory storage.Storage. Documents round-trip through
// JSON the same way they do over the HTTP binding.
type MemStorage struct {
	mu     sync.Mutex
	docs   map[string]map[string]map[string]any
	order  map[string][]string
	unique map[string][][]string
	calls  map[string]int

	// Fail, when set, runs before every operation with the op name
	// ("get", "create", "update", "delete", "query"), the collection and the
	// 1-based count of that op on that collection. A non-nil error fails the
	// call without touching state.
	Fail func(op, collection string, n int) error
}

// NewMemStorage returns an empty store.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		docs:   map[string]map[string]map[string]any{},
		order:  map[string][]string{},
		unique: map[string][][]string{},
		calls:  map[string]int{},
	}
}

// Unique declares a unique constraint over fields of collection.
func (m *MemStorage) Unique(collection string, fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[collection] = append(m.unique[collection], fields)
}

// Calls returns how many times op ran against collection.
func (m *MemStorage) Calls(op, collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+":"+collection]
}

// Count returns the number of documents in collection.
func (m *MemStorage) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

// Put stores doc under id, bypassing constraints and call counting.
func (m *MemStorage) Put(collection, id string, doc any) {
	raw, err := toMap(doc)
	if err != nil {
		panic(err)
	}
	raw["_id"] = id
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, raw)
}

func (m *MemStorage) put(collection, id string, raw map[string]any) {
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]map[string]any{}
	}
	if _, exists := m.docs[collection][id]; !exists {
		m.order[collection] = append(m.order[collection], id)
	}
	m.docs[collection][id] = raw
}

func (m *MemStorage) begin(op, collection string) error {
	m.calls[op+":"+collection]++
	if m.Fail != nil {
		return m.Fail(op, collection, m.calls[op+":"+collection])
	}
	return nil
}

func (m *MemStorage) Get(_ context.Context, collection, id string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get", collection); err != nil {
		return err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return storage.ErrNotFound
	}
	return fromAny(doc, out)
}

func (m *MemStorage) Create(_ context.Context, collection string, doc any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("create", collection); err != nil {
		return "", err
	}
	raw, err := toMap(doc)
	if err != nil {
		return "", err
	}
	id, _ := ids.Normalize(raw["_id"])
	if id == "" || id == primitive.NilObjectID.Hex() {
		id = primitive.NewObjectID().Hex()
	}
	if _, exists := m.docs[collection][id]; exists {
		return "", storage.ErrConflict
	}
	raw["_id"] = id
	if m.violates(collection, id, raw) {
		return "", storage.ErrConflict
	}
	m.put(collection, id, raw)
	return id, nil
}

func (m *MemStorage) Update(_ context.Context, collection, id string, patch any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update", collection); err != nil {
		return err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return storage.ErrNotFound
	}
	set, err := toMap(patch)
	if err != nil {
		return err
	}
	merged := make(map[string]any, len(doc)+len(set))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range set {
		if k == "_id" {
			continue
		}
		merged[k] = v
	}
	if m.violates(collection, id, merged) {
		return storage.ErrConflict
	}
	m.docs[collection][id] = merged
	return nil
}

func (m *MemStorage) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete", collection); err != nil {
		return err
	}
	if _, ok := m.docs[collection][id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.docs[collection], id)
	order := m.order[collection][:0]
	for _, o := range m.order[collection] {
		if o != id {
			order = append(order, o)
		}
	}
	m.order[collection] = order
	return nil
}

func (m *MemStorage) Query(_ context.Context, collection string, filter storage.Filter, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("query", collection); err != nil {
		return err
	}
	matches := []map[string]any{}
	for _, id := range m.order[collection] {
		doc := m.docs[collection][id]
		if matchFilter(doc, filter) {
			matches = append(matches, doc)
		}
	}
	return fromAny(matches, out)
}

func (m *MemStorage) violates(collection, id string, doc map[string]any) bool {
	for _, fields := range m.unique[collection] {
		key := uniqueKey(doc, fields)
		for otherID, other := range m.docs[collection] {
			if otherID != id && uniqueKey(other, fields) == key {
				return true
			}
		}
	}
	return false
}

func uniqueKey(doc map[string]any, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i], _ = ids.Normalize(doc[f])
	}
	return strings.Join(parts, "\x00")
}

func matchFilter(doc map[string]any, filter storage.Filter) bool {
	for k, want := range filter {
		got, ok := ids.Normalize(doc[k])
		if !ok || got != want {
			return false
		}
	}
	return true
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("document must be an object: %w", err)
	}
	return out, nil
}

func fromAny(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
