package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/idempotency"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/stockcount-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/stockcount-service/pkg/outbox/mongodb"
)

const (
	InventoriesCollection = "inventories"
	ItemsCollection       = "inventory_items"
	CountsCollection      = "counts"
	SerialsCollection     = "serial_items"
	AuditLogCollection    = "audit_log"
	OutboxCollection      = outboxMongo.DefaultCollectionName
	IdempotencyCollection = idempotency.DefaultCollectionName
)

// Indexes returns the index set of every collection the service owns
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		InventoriesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		ItemsCollection: {
			{Keys: bson.D{{Key: "inventoryId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "inventoryId", Value: 1}, {Key: "classification", Value: 1}}},
			{Keys: bson.D{{Key: "inventoryId", Value: 1}, {Key: "locationId", Value: 1}}},
		},
		CountsCollection: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "countedAt", Value: 1}}},
			{Keys: bson.D{{Key: "inventoryId", Value: 1}}},
		},
		SerialsCollection: {
			{Keys: bson.D{{Key: "inventoryId", Value: 1}, {Key: "serialNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "inventoryId", Value: 1}, {Key: "resolution", Value: 1}}},
		},
		AuditLogCollection: {
			{Keys: bson.D{{Key: "entityType", Value: 1}, {Key: "entityId", Value: 1}, {Key: "recordedAt", Value: -1}}},
		},
		OutboxCollection:      outboxMongo.Indexes(),
		IdempotencyCollection: idempotency.Indexes(),
	}
}

// EnsureIndexes creates every index returned by Indexes
func EnsureIndexes(ctx context.Context, client *pkgmongo.Client) error {
	return client.EnsureIndexes(ctx, Indexes())
}

// instrumented is embedded by every repository to time collection calls
type instrumented struct {
	collection *mongo.Collection
	metrics    *metrics.Metrics
}

func (i instrumented) observe(operation string, start time.Time, err error) {
	if i.metrics == nil {
		return
	}
	i.metrics.RecordMongoDBOperation(i.collection.Name(), operation, err == nil, time.Since(start))
}

// replaceVersioned overwrites doc only if the stored version still equals
// version. A miss is reported as notFound or ErrConcurrentModification.
func (i instrumented) replaceVersioned(ctx context.Context, id string, version int64, doc any, notFound error) (err error) {
	defer func(start time.Time) { i.observe("replace", start, err) }(time.Now())

	res, err := i.collection.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", i.collection.Name(), err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := i.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", i.collection.Name(), err)
	}
	if n == 0 {
		return notFound
	}
	return domain.ErrConcurrentModification
}

func (i instrumented) findOne(ctx context.Context, filter bson.M, out any, notFound error) (err error) {
	defer func(start time.Time) { i.observe("find_one", start, err) }(time.Now())

	err = i.collection.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to find in %s: %w", i.collection.Name(), err)
	}
	return nil
}

func (i instrumented) deleteMany(ctx context.Context, filter bson.M) (n int64, err error) {
	defer func(start time.Time) { i.observe("delete_many", start, err) }(time.Now())

	res, err := i.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", i.collection.Name(), err)
	}
	return res.DeletedCount, nil
}

func pageOptions(limit, offset int) *options.FindOptions {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}
