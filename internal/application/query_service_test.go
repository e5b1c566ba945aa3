package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stockcount-service/internal/domain"
)

func TestQueryService_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10, 5, 4)
	ids := env.itemIDs(t, inv.ID)
	ctx := context.Background()

	env.startRound(t, inv.ID, 1)
	env.recordCount(t, ids[0], 1, 10)
	env.recordCount(t, ids[1], 1, 7)
	env.recordCount(t, ids[2], 1, 3)
	env.finishRound(t, inv.ID, 1)
	env.startRound(t, inv.ID, 2)
	env.recordCount(t, ids[0], 2, 10)
	env.recordCount(t, ids[1], 2, 7)

	dash, err := env.query.Dashboard(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "count2_open", dash.Status)
	assert.Equal(t, 3, dash.TotalItems)
	assert.Equal(t, 3, dash.CountedItems)
	assert.Equal(t, 2, dash.SettledItems)
	assert.Equal(t, "100", dash.CountProgress.String())
	assert.Equal(t, "66.67", dash.SettledProgress.String())
	assert.Equal(t, "50", dash.Accuracy.String())

	assert.Equal(t, DivergenceTotalsDTO{PositiveUnits: 2, NetUnits: 2, DivergentItems: 1}, dash.Divergence)
	assert.Equal(t, 1, dash.Classifications["no_divergence"])
	assert.Equal(t, 1, dash.Classifications["consistent_divergence"])
	assert.Equal(t, 1, dash.Classifications["pending_count"])
	assert.Equal(t, 0, dash.Classifications["needs_audit"])
	assert.Equal(t, 0, dash.Serials.Total)
}

func TestQueryService_DashboardOfEmptyInventory(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "EMPTY")

	dash, err := env.query.Dashboard(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, dash.CountProgress.IsZero())
	assert.True(t, dash.Accuracy.IsZero())
}

func TestQueryService_Listings(t *testing.T) {
	env := newTestEnv(t)
	first := env.createInventory(t, "INV-1", 10, 5)
	env.createInventory(t, "INV-2", 1)
	ctx := context.Background()

	env.startRound(t, first.ID, 1)
	env.recordCount(t, env.itemIDs(t, first.ID)[0], 1, 10)

	open, err := env.query.ListInventories(ctx, ListInventoriesQuery{Status: "count1_open"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "INV-1", open[0].Code)

	_, err = env.query.ListInventories(ctx, ListInventoriesQuery{Status: "paused"})
	requireAppError(t, err, domain.CodeInvalidInventory, http.StatusBadRequest)

	items, err := env.query.ListItems(ctx, ListItemsQuery{InventoryID: first.ID, Status: "in_progress"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Count1)
	assert.Equal(t, 10, items[0].Count1.Quantity)

	items, err = env.query.ListItems(ctx, ListItemsQuery{InventoryID: first.ID, UnsettledOnly: true})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = env.query.ListItems(ctx, ListItemsQuery{InventoryID: "missing"})
	requireAppError(t, err, domain.CodeInventoryNotFound, http.StatusNotFound)
}
