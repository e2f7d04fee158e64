// Package store is the resource store adapter: typed access to the named
// collections of the shared Mongo database. It holds no state of its own;
// every call goes to the server.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no document matches the id or filter.
var ErrNotFound = errors.New("document not found")

// Repository is the CRUD surface the handlers depend on.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id primitive.ObjectID) (*T, error)
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	Insert(ctx context.Context, doc *T) (*T, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*T, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Collection implements Repository over one Mongo collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

func NewCollection[T any](coll *mongo.Collection) *Collection[T] {
	return &Collection[T]{coll: coll}
}

// List returns every document. An empty collection yields an empty slice.
func (c *Collection[T]) List(ctx context.Context) (_ []T, err error) {
	defer c.observe("list", time.Now(), &err)

	cursor, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

func (c *Collection[T]) Get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) FindOne(ctx context.Context, filter bson.M) (_ *T, err error) {
	defer c.observe("find_one", time.Now(), &err)

	var doc T
	err = c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", c.coll.Name(), err)
	}
	return &doc, nil
}

// Insert stores doc and reads it back so callers see the persisted state.
// Duplicate key errors stay detectable with mongo.IsDuplicateKeyError.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) (_ *T, err error) {
	defer c.observe("insert", time.Now(), &err)

	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert %s: unexpected id type %T", c.coll.Name(), res.InsertedID)
	}
	return c.Get(ctx, id)
}

// Update applies set to the document and returns the updated version.
func (c *Collection[T]) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (_ *T, err error) {
	defer c.observe("update", time.Now(), &err)

	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return c.Get(ctx, id)
}

func (c *Collection[T]) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	defer c.observe("delete", time.Now(), &err)

	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a document with id is present.
func (c *Collection[T]) Exists(ctx context.Context, id primitive.ObjectID) (_ bool, err error) {
	defer c.observe("exists", time.Now(), &err)

	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n > 0, nil
}

func (c *Collection[T]) observe(op string, start time.Time, err *error) {
	metrics.RecordDBOperation(op, c.coll.Name(), time.Since(start), *err, ErrNotFound)
}
