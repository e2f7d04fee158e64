// Package storetest provides an in-memory store.Repository for handler and
// service tests. Documents round-trip through BSON so field tags behave as
// they do against a real server.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/blandib/spiritual-journal-api/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Memory is an in-memory collection. Unique lists bson field names that
// must not repeat across documents, mirroring unique indexes.
type Memory[T any] struct {
	Name   string
	Unique []string

	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	order []primitive.ObjectID
	docs  map[primitive.ObjectID]bson.M
}

var _ store.Repository[struct{}] = (*Memory[struct{}])(nil)

func NewMemory[T any](name string, unique ...string) *Memory[T] {
	return &Memory[T]{Name: name, Unique: unique, docs: make(map[primitive.ObjectID]bson.M)}
}

func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		doc, err := decode[T](m.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *Memory[T]) Get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return m.FindOne(ctx, bson.M{"_id": id})
}

// FindOne supports equality filters only.
func (m *Memory[T]) FindOne(_ context.Context, filter bson.M) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, id := range m.order {
		doc := m.docs[id]
		if matches(doc, filter) {
			return decode[T](doc)
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory[T]) Insert(_ context.Context, doc *T) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	raw, err := encode(doc)
	if err != nil {
		return nil, err
	}
	id, ok := raw["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		raw["_id"] = id
	}
	if err := m.checkUnique(id, raw); err != nil {
		return nil, err
	}
	m.docs[id] = raw
	m.order = append(m.order, id)
	return decode[T](raw)
}

func (m *Memory[T]) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	current, ok := m.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := bson.M{}
	for k, v := range current {
		next[k] = v
	}
	for k, v := range set {
		next[k] = v
	}
	// Normalise set values through BSON so later decodes see stored types
	raw, err := encode(&next)
	if err != nil {
		return nil, err
	}
	if err := m.checkUnique(id, raw); err != nil {
		return nil, err
	}
	m.docs[id] = raw
	return decode[T](raw)
}

func (m *Memory[T]) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.docs, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether id is stored.
func (m *Memory[T]) Has(id primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}

// Len returns the number of stored documents.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *Memory[T]) checkUnique(self primitive.ObjectID, doc bson.M) error {
	for _, field := range m.Unique {
		val, ok := doc[field]
		if !ok || val == nil || val == "" {
			continue
		}
		for id, other := range m.docs {
			if id != self && other[field] == val {
				return mongo.WriteException{WriteErrors: []mongo.WriteError{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error collection: test.%s index: %s_1 dup key: { %s: %v }", m.Name, field, field, val),
				}}}
			}
		}
	}
	return nil
}

func matches(doc, filter bson.M) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func encode(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode[T any](doc bson.M) (*T, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exister resolves ids against a fixed set of named Memory collections.
type Exister struct {
	Collections map[string]interface {
		Has(primitive.ObjectID) bool
	}
	Err error
}

func (e *Exister) Exists(_ context.Context, collection, id string) (bool, error) {
	if e.Err != nil {
		return false, e.Err
	}
	c, ok := e.Collections[collection]
	if !ok {
		return false, fmt.Errorf("unknown collection %q", collection)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	return c.Has(oid), nil
}
