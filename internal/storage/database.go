package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// stateDocument is the MongoDB representation of types.Store. One document
// per configured key, so several sites can share a collection.
type stateDocument struct {
	ID        string       `bson:"_id"`
	LastPost  *string      `bson:"last_post"`
	Posts     []types.Post `bson:"posts"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

// MongoStore keeps the state document in a MongoDB collection.
// The whole store lives in one document, so it is bound by the 16MB
// document limit.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	key        string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		key:        cfg.Key,
		timeout:    timeout,
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// Load implements StateStore.
func (s *MongoStore) Load(ctx context.Context) (*types.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc stateDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": s.key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.logger.Info("no stored state, starting empty", "key", s.key)
		return types.NewStore(), nil
	}
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("find state %q: %w", s.key, err)}
	}

	store := &types.Store{LastPost: doc.LastPost, Posts: doc.Posts}
	store.Normalize()
	return store, nil
}

// Snapshot implements StateStore. Load never writes, so they are the same.
func (s *MongoStore) Snapshot(ctx context.Context) (*types.Store, error) {
	return s.Load(ctx)
}

// Save implements StateStore with an upserting replace.
func (s *MongoStore) Save(ctx context.Context, store *types.Store) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := stateDocument{
		ID:        s.key,
		LastPost:  store.LastPost,
		Posts:     store.Posts,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": s.key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("replace state %q: %w", s.key, err)}
	}

	s.logger.Info("state saved", "key", s.key, "posts", len(store.Posts))
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
