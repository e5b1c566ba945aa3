package outbox

import (
	"context"
	"time"
)

// Repository persists outbox events
type Repository interface {
	// SaveAll stores events; when ctx carries a session the insert joins its transaction.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)
	CountUnpublished(ctx context.Context) (int64, error)
	MarkPublished(ctx context.Context, eventID string) error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
	DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error)
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
