package idempotency

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollectionName is the collection holding idempotency records
const DefaultCollectionName = "idempotency_keys"

// MongoStore implements Store using MongoDB
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoDB-backed store
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(DefaultCollectionName)}
}

// Acquire inserts the record locked, or returns the record already stored
// under the same user and key
func (s *MongoStore) Acquire(ctx context.Context, record *Record) (*Record, bool, error) {
	now := time.Now().UTC()
	filter := bson.M{"userId": record.UserID, "key": record.Key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":         record.ID,
			"method":      record.Method,
			"path":        record.Path,
			"fingerprint": record.Fingerprint,
			"lockedAt":    now,
			"createdAt":   record.CreatedAt,
			"expiresAt":   record.ExpiresAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result Record
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if mongo.IsDuplicateKeyError(err) {
		// lost a concurrent upsert race; the winner's record is now visible
		if err := s.collection.FindOne(ctx, filter).Decode(&result); err != nil {
			return nil, false, err
		}
		return &result, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &result, result.ID == record.ID, nil
}

// Relock takes over an uncompleted record whose lock is older than staleBefore.
// It returns false when another request took it over first.
func (s *MongoStore) Relock(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	filter := bson.M{
		"_id":         id,
		"completedAt": bson.M{"$exists": false},
		"lockedAt":    bson.M{"$lt": staleBefore},
	}
	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"lockedAt": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Complete stores the response and clears the lock
func (s *MongoStore) Complete(ctx context.Context, id string, statusCode int, contentType string, body []byte) error {
	update := bson.M{
		"$set": bson.M{
			"statusCode":  statusCode,
			"contentType": contentType,
			"body":        body,
			"completedAt": time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// Release drops an uncompleted record so the key can be retried
func (s *MongoStore) Release(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "completedAt": bson.M{"$exists": false}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

// Indexes returns the indexes the store relies on
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_user_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}
}
