package cloudevents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wms-platform/stockcount-service/pkg/logging"
)

func TestEventFactory_CreateInventoryEvent(t *testing.T) {
	f := NewEventFactory(SourceStockCount)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	event := f.CreateInventoryEvent(ctx, ItemCounted, "inv-1", "item/it-1", map[string]int{"stage": 2})

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, ItemCounted, event.Type)
	assert.Equal(t, SourceStockCount, event.Source)
	assert.Equal(t, "item/it-1", event.Subject)
	assert.Equal(t, "inv-1", event.InventoryID)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.NotEmpty(t, event.ID)
	assert.Empty(t, event.TraceParent)
}
