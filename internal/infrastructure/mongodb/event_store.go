package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/cloudevents"
	"github.com/wms-platform/stockcount-service/pkg/kafka"
	pkgmongo "github.com/wms-platform/stockcount-service/pkg/mongodb"
	"github.com/wms-platform/stockcount-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/stockcount-service/pkg/outbox/mongodb"
)

const aggregateType = "Inventory"

// EventStore converts domain events to CloudEvents and writes them to the
// outbox. Called with a transaction context it joins that transaction.
type EventStore struct {
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewEventStore(db *mongo.Database, eventFactory *cloudevents.EventFactory) *EventStore {
	return &EventStore{
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
}

func (s *EventStore) Append(ctx context.Context, events ...domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		cloudEvent := s.eventFactory.CreateInventoryEvent(ctx, event.EventType(), event.AggregateID(), event.Subject(), event)
		cloudEvent.Time = event.OccurredAt()

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			event.AggregateID(),
			aggregateType,
			kafka.Topics.StockCountEvents,
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	return s.outboxRepo.SaveAll(ctx, outboxEvents)
}

var _ domain.EventStore = (*EventStore)(nil)

// Transactor runs application work inside a MongoDB multi-document transaction
type Transactor struct {
	client *pkgmongo.Client
}

func NewTransactor(client *pkgmongo.Client) *Transactor {
	return &Transactor{client: client}
}

// WithTransaction hands fn the session context so repositories join the
// transaction. fn may run more than once on transient errors.
func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := t.client.WithTransaction(ctx, fn); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

var _ domain.Transactor = (*Transactor)(nil)
