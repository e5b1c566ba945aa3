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

// SerialRepository stores serial items, unique per inventory and serial number
type SerialRepository struct {
	instrumented
}

func NewSerialRepository(db *mongo.Database, m *metrics.Metrics) *SerialRepository {
	return &SerialRepository{instrumented{collection: db.Collection(SerialsCollection), metrics: m}}
}

func (r *SerialRepository) InsertMany(ctx context.Context, items []*domain.SerialItem) (err error) {
	if len(items) == 0 {
		return nil
	}
	defer func(start time.Time) { r.observe("insert_many", start, err) }(time.Now())

	docs := make([]interface{}, len(items))
	for i, item := range items {
		docs[i] = item
	}
	if _, err = r.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConcurrentModification
		}
		return fmt.Errorf("failed to insert serial items: %w", err)
	}
	return nil
}

func (r *SerialRepository) Save(ctx context.Context, item *domain.SerialItem) error {
	expected := item.Version
	item.Version++
	if err := r.replaceVersioned(ctx, item.ID, expected, item, domain.ErrSerialNotFound); err != nil {
		item.Version = expected
		return err
	}
	return nil
}

func (r *SerialRepository) FindByID(ctx context.Context, id string) (*domain.SerialItem, error) {
	var item domain.SerialItem
	if err := r.findOne(ctx, bson.M{"_id": id}, &item, domain.ErrSerialNotFound); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *SerialRepository) FindBySerial(ctx context.Context, inventoryID, serialNumber string) (*domain.SerialItem, error) {
	var item domain.SerialItem
	filter := bson.M{"inventoryId": inventoryID, "serialNumber": serialNumber}
	if err := r.findOne(ctx, filter, &item, domain.ErrSerialNotFound); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *SerialRepository) FindByInventory(ctx context.Context, inventoryID string, resolution *domain.Resolution) (result []*domain.SerialItem, err error) {
	defer func(start time.Time) { r.observe("find", start, err) }(time.Now())

	query := bson.M{"inventoryId": inventoryID}
	if resolution != nil {
		query["resolution"] = resolution.String()
	}

	opts := options.Find().SetSort(bson.D{{Key: "serialNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list serial items: %w", err)
	}
	defer cursor.Close(ctx)

	result = make([]*domain.SerialItem, 0)
	if err = cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode serial items: %w", err)
	}
	return result, nil
}

func (r *SerialRepository) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	return r.deleteMany(ctx, bson.M{"inventoryId": inventoryID})
}

var _ domain.SerialRepository = (*SerialRepository)(nil)

// AuditLogRepository appends entries to the audit_log collection
type AuditLogRepository struct {
	instrumented
}

func NewAuditLogRepository(db *mongo.Database, m *metrics.Metrics) *AuditLogRepository {
	return &AuditLogRepository{instrumented{collection: db.Collection(AuditLogCollection), metrics: m}}
}

func (r *AuditLogRepository) Record(ctx context.Context, entry domain.AuditEntry) (err error) {
	defer func(start time.Time) { r.observe("insert", start, err) }(time.Now())

	if _, err = r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

var _ domain.AuditRecorder = (*AuditLogRepository)(nil)
