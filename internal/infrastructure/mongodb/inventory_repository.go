package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/metrics"
)

// InventoryRepository stores inventory aggregates. Domain events are not
// written here; the application appends them through the EventStore in the
// same transaction.
type InventoryRepository struct {
	instrumented
}

func NewInventoryRepository(db *mongo.Database, m *metrics.Metrics) *InventoryRepository {
	return &InventoryRepository{instrumented{collection: db.Collection(InventoriesCollection), metrics: m}}
}

func (r *InventoryRepository) Create(ctx context.Context, inv *domain.Inventory) (err error) {
	defer func(start time.Time) { r.observe("insert", start, err) }(time.Now())

	if _, err = r.collection.InsertOne(ctx, inv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert inventory: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Save(ctx context.Context, inv *domain.Inventory) error {
	expected := inv.Version
	inv.Version++
	if err := r.replaceVersioned(ctx, inv.ID, expected, inv, domain.ErrInventoryNotFound); err != nil {
		inv.Version = expected
		return err
	}
	return nil
}

func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*domain.Inventory, error) {
	var inv domain.Inventory
	if err := r.findOne(ctx, bson.M{"_id": id}, &inv, domain.ErrInventoryNotFound); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InventoryRepository) FindByCode(ctx context.Context, code string) (*domain.Inventory, error) {
	var inv domain.Inventory
	if err := r.findOne(ctx, bson.M{"code": code}, &inv, domain.ErrInventoryNotFound); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InventoryRepository) List(ctx context.Context, filter domain.InventoryFilter) (result []*domain.Inventory, err error) {
	defer func(start time.Time) { r.observe("find", start, err) }(time.Now())

	query := bson.M{}
	if filter.Status != nil {
		query["status"] = filter.Status.String()
	}
	if filter.Type != nil {
		query["type"] = filter.Type.String()
	}

	opts := pageOptions(filter.Limit, filter.Offset).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventories: %w", err)
	}
	defer cursor.Close(ctx)

	result = make([]*domain.Inventory, 0)
	if err = cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode inventories: %w", err)
	}
	return result, nil
}

func (r *InventoryRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { r.observe("delete", start, err) }(time.Now())

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete inventory: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrInventoryNotFound
	}
	return nil
}

var _ domain.InventoryRepository = (*InventoryRepository)(nil)

