package cloudevents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/stockcount-service/pkg/logging"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent builds an envelope, copying the correlation ID and the
// active trace context from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if ctx == nil {
		return event
	}
	if correlationID, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		event.CorrelationID = correlationID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.TraceParent = fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), sc.TraceFlags())
	}

	return event
}

// CreateInventoryEvent builds an event scoped to an inventory
func (f *EventFactory) CreateInventoryEvent(ctx context.Context, eventType, inventoryID, subject string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.InventoryID = inventoryID
	return event
}
