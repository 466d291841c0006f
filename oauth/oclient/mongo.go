package oclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ TokenStore = &MongoTokenStore{}

// MongoTokenStore is a MongoDB-backed TokenStore. Each key holds one token
// document, so several clients can share a database.
type MongoTokenStore struct {
	tokens *mongo.Collection
	key    string
}

type tokenDocument struct {
	Key       string    `bson:"_id"`
	Token     `bson:",inline"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoTokenStore creates a store over the sky_tokens collection of db.
func NewMongoTokenStore(db *mongo.Database, key string) *MongoTokenStore {
	return &MongoTokenStore{
		tokens: db.Collection("sky_tokens"),
		key:    key,
	}
}

// Load fetches the token stored under the store's key.
func (s *MongoTokenStore) Load(ctx context.Context) (*Token, error) {
	var doc tokenDocument
	err := s.tokens.FindOne(ctx, bson.M{"_id": s.key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	tok := doc.Token
	return &tok, nil
}

// Save upserts the token under the store's key.
func (s *MongoTokenStore) Save(ctx context.Context, tok *Token) error {
	doc := tokenDocument{
		Key:       s.key,
		Token:     *tok,
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.tokens.ReplaceOne(ctx, bson.M{"_id": s.key}, doc, opts); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
