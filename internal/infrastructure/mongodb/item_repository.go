package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
)

type ItemRepository struct {
	instrumented
}

func NewItemRepository(db *mongo.Database, m *metrics.Metrics) *ItemRepository {
	return &ItemRepository{instrumented{collection: db.Collection(ItemsCollection), metrics: m}}
}

func (r *ItemRepository) InsertMany(ctx context.Context, items []*domain.InventoryItem) (err error) {
	if len(items) == 0 {
		return nil
	}
	defer func(start time.Time) { r.observe("insert_many", start, err) }(time.Now())

	docs := make([]interface{}, len(items))
	for i, item := range items {
		docs[i] = item
	}
	if _, err = r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert inventory items: %w", err)
	}
	return nil
}

func (r *ItemRepository) Save(ctx context.Context, item *domain.InventoryItem) error {
	expected := item.Version
	item.Version++
	if err := r.replaceVersioned(ctx, item.ID, expected, item, domain.ErrItemNotFound); err != nil {
		item.Version = expected
		return err
	}
	return nil
}

func (r *ItemRepository) FindByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := r.findOne(ctx, bson.M{"_id": id}, &item, domain.ErrItemNotFound); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepository) FindByInventory(ctx context.Context, inventoryID string, filter domain.ItemFilter) (result []*domain.InventoryItem, err error) {
	defer func(start time.Time) { r.observe("find", start, err) }(time.Now())

	cursor, err := r.collection.Find(ctx, itemQuery(inventoryID, filter),
		pageOptions(filter.Limit, filter.Offset).SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	defer cursor.Close(ctx)

	result = make([]*domain.InventoryItem, 0)
	if err = cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode inventory items: %w", err)
	}
	return result, nil
}

func itemQuery(inventoryID string, filter domain.ItemFilter) bson.M {
	query := bson.M{"inventoryId": inventoryID}
	if filter.Status != nil {
		query["status"] = filter.Status.String()
	}
	if filter.LocationID != "" {
		query["locationId"] = filter.LocationID
	}

	classification := bson.M{}
	if filter.Classification != nil {
		classification["$eq"] = filter.Classification.String()
	}
	if filter.UnsettledOnly {
		classification["$nin"] = settledClassifications()
	}
	if len(classification) > 0 {
		query["classification"] = classification
	}
	return query
}

func settledClassifications() bson.A {
	settled := bson.A{}
	for _, c := range domain.AllClassifications {
		if c.IsSettled() {
			settled = append(settled, c.String())
		}
	}
	return settled
}

func (r *ItemRepository) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	return r.deleteMany(ctx, bson.M{"inventoryId": inventoryID})
}

var _ domain.ItemRepository = (*ItemRepository)(nil)

// CountRepository is the append-only count ledger
type CountRepository struct {
	instrumented
}

func NewCountRepository(db *mongo.Database, m *metrics.Metrics) *CountRepository {
	return &CountRepository{instrumented{collection: db.Collection(CountsCollection), metrics: m}}
}

func (r *CountRepository) Append(ctx context.Context, count *domain.Count) (err error) {
	defer func(start time.Time) { r.observe("insert", start, err) }(time.Now())

	if _, err = r.collection.InsertOne(ctx, count); err != nil {
		return fmt.Errorf("failed to append count: %w", err)
	}
	return nil
}

func (r *CountRepository) SupersedeStage(ctx context.Context, itemID string, stage domain.Stage) (err error) {
	defer func(start time.Time) { r.observe("update_many", start, err) }(time.Now())

	filter := bson.M{"itemId": itemID, "stage": stage.Int(), "superseded": false}
	if _, err = r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"superseded": true}}); err != nil {
		return fmt.Errorf("failed to supersede counts: %w", err)
	}
	return nil
}

func (r *CountRepository) ListByItem(ctx context.Context, itemID string) (result []*domain.Count, err error) {
	defer func(start time.Time) { r.observe("find", start, err) }(time.Now())

	opts := options.Find().SetSort(bson.D{{Key: "countedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list counts: %w", err)
	}
	defer cursor.Close(ctx)

	result = make([]*domain.Count, 0)
	if err = cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode counts: %w", err)
	}
	return result, nil
}

func (r *CountRepository) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	return r.deleteMany(ctx, bson.M{"inventoryId": inventoryID})
}

var _ domain.CountLedger = (*CountRepository)(nil)
