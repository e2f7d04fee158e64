package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection      = "users"
	EntriesCollection    = "entries"
	CommentsCollection   = "comments"
	CategoriesCollection = "categories"
)

// Mongo is the process-wide database handle. It is created once in main and
// passed to every component that needs storage.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func Connect(ctx context.Context, mongoURI, fallbackDB string) (*Mongo, error) {
	// Atlas handshakes can be slow
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	logging.Info().Str("uri", MaskURI(mongoURI)).Msg("Connecting to MongoDB")
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	dbName := DatabaseName(mongoURI, fallbackDB)
	logging.Info().Str("database", dbName).Msg("✅ Connected to MongoDB")

	return &Mongo{Client: client, DB: client.Database(dbName)}, nil
}

// Collection returns one of the named collections.
func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.DB.Collection(name)
}

// Ping reports whether the server is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("mongo: not connected")
	}
	return m.Client.Ping(ctx, nil)
}

func (m *Mongo) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes the API relies on.
// Called on startup from main after Mongo has connected.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_1").SetUnique(true),
			},
			{
				// Users created directly have no external id
				Keys:    bson.D{{Key: "external_id", Value: 1}},
				Options: options.Index().SetName("external_id_1").SetUnique(true).SetSparse(true),
			},
		},
		EntriesCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("user_id_1"),
			},
		},
		CommentsCollection: {
			{
				Keys:    bson.D{{Key: "entry_id", Value: 1}},
				Options: options.Index().SetName("entry_id_1"),
			},
		},
	}

	for name, models := range indexes {
		if _, err := m.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// DatabaseName extracts the database from a connection string such as
// mongodb+srv://host/journal?retryWrites=true, falling back when absent.
func DatabaseName(mongoURI, fallback string) string {
	rest := mongoURI
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	idx := strings.Index(rest, "/")
	if idx == -1 {
		return fallback
	}
	name := strings.Split(rest[idx+1:], "?")[0]
	if name == "" {
		return fallback
	}
	return name
}

// MaskURI hides the password portion of a connection string for logging.
func MaskURI(mongoURI string) string {
	schemeEnd := strings.Index(mongoURI, "://")
	at := strings.LastIndex(mongoURI, "@")
	if schemeEnd == -1 || at == -1 || at < schemeEnd {
		return mongoURI
	}
	creds := mongoURI[schemeEnd+3 : at]
	colon := strings.Index(creds, ":")
	if colon == -1 {
		return mongoURI
	}
	return mongoURI[:schemeEnd+3] + creds[:colon] + ":***" + mongoURI[at:]
}
