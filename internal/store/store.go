package store

import (
	"context"
	"fmt"

	"github.com/blandib/spiritual-journal-api/internal/database"
	"github.com/blandib/spiritual-journal-api/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type existsChecker interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Store exposes the four resource collections from one database handle.
type Store struct {
	Users      *Collection[models.User]
	Entries    *Collection[models.Entry]
	Comments   *Collection[models.Comment]
	Categories *Collection[models.Category]

	byName map[string]existsChecker
}

func New(m *database.Mongo) *Store {
	s := &Store{
		Users:      NewCollection[models.User](m.Collection(database.UsersCollection)),
		Entries:    NewCollection[models.Entry](m.Collection(database.EntriesCollection)),
		Comments:   NewCollection[models.Comment](m.Collection(database.CommentsCollection)),
		Categories: NewCollection[models.Category](m.Collection(database.CategoriesCollection)),
	}
	s.byName = map[string]existsChecker{
		database.UsersCollection:      s.Users,
		database.EntriesCollection:    s.Entries,
		database.CommentsCollection:   s.Comments,
		database.CategoriesCollection: s.Categories,
	}
	return s
}

// Exists looks up id in the named collection. It satisfies validation.Exister.
func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	c, ok := s.byName[collection]
	if !ok {
		return false, fmt.Errorf("unknown collection %q", collection)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	return c.Exists(ctx, oid)
}
