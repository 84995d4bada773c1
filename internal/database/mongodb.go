package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mediaCollectionName      = "media"
	servedCollectionName     = "served_markers"
	bindingCollectionName    = "category_bindings"
	favoriteCollectionName   = "favorites"
	lastServedCollectionName = "last_served"
	historyCollectionName    = "history"
	filterCollectionName     = "filter_preferences"
	settingCollectionName    = "behavior_settings"
	sessionCollectionName    = "batch_sessions"
)

// ConnectDB establishes a connection to MongoDB and pings it.
func ConnectDB(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Decode(&result); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Successfully connected and pinged MongoDB!")

	return client, client.Database(dbName), nil
}

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client     *mongo.Client
	media      *mongo.Collection
	served     *mongo.Collection
	bindings   *mongo.Collection
	favorites  *mongo.Collection
	lastServed *mongo.Collection
	history    *mongo.Collection
	filters    *mongo.Collection
	settings   *mongo.Collection
	sessions   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore binds the store to db. client may be nil when the caller owns it.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:     client,
		media:      db.Collection(mediaCollectionName),
		served:     db.Collection(servedCollectionName),
		bindings:   db.Collection(bindingCollectionName),
		favorites:  db.Collection(favoriteCollectionName),
		lastServed: db.Collection(lastServedCollectionName),
		history:    db.Collection(historyCollectionName),
		filters:    db.Collection(filterCollectionName),
		settings:   db.Collection(settingCollectionName),
		sessions:   db.Collection(sessionCollectionName),
	}
}

// Migrate creates the indexes every query path relies on.
func (s *MongoStore) Migrate(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.media: {
			{Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "source_chat_id", Value: 1}}},
			{Keys: bson.D{{Key: "added_at", Value: 1}}},
		},
		s.bindings: {
			{Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "source_chat_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "source_chat_id", Value: 1}}},
		},
		s.favorites: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "media_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "media_id", Value: 1}}},
		},
		s.history: {
			{Keys: bson.D{{Key: "entries.media_id", Value: 1}}},
		},
		s.filters: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "scope_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.settings: {
			{Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.sessions: {
			{Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	log.Printf("Ensured indexes on %d collections", len(indexes))
	return nil
}

// Close disconnects the client if the store owns one.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
