package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/logging"
)

type memoryInventories struct {
	all []*domain.Inventory
}

func (m *memoryInventories) List(_ context.Context, filter domain.InventoryFilter) ([]*domain.Inventory, error) {
	if filter.Offset >= len(m.all) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(m.all) {
		end = len(m.all)
	}
	return m.all[filter.Offset:end], nil
}

func (m *memoryInventories) FindByCode(_ context.Context, code string) (*domain.Inventory, error) {
	for _, inv := range m.all {
		if inv.Code == code {
			return inv, nil
		}
	}
	return nil, domain.ErrInventoryNotFound
}

type memoryItems struct {
	byInventory map[string][]*domain.InventoryItem
	saved       []string
}

func (m *memoryItems) FindByInventory(_ context.Context, inventoryID string, _ domain.ItemFilter) ([]*domain.InventoryItem, error) {
	return m.byInventory[inventoryID], nil
}

func (m *memoryItems) Save(_ context.Context, item *domain.InventoryItem) error {
	m.saved = append(m.saved, item.ID)
	return nil
}

func staleItem(inventoryID string) *domain.InventoryItem {
	qty := 5
	item := domain.NewInventoryItem(inventoryID, domain.StockLine{
		ProductID:   "p1",
		ProductCode: "SKU-1",
		LocationID:  "LOC-1",
		Quantity:    &qty,
	})
	now := time.Now().UTC()
	item.Count1 = &domain.CountValue{Quantity: 5, CountedBy: "c1", CountedAt: now}
	item.Count2 = &domain.CountValue{Quantity: 5, CountedBy: "c2", CountedAt: now}
	return item
}

func newRecomputer(invs *memoryInventories, items *memoryItems, dryRun bool) *recomputer {
	return &recomputer{
		inventories: invs,
		items:       items,
		logger:      logging.NewNop(),
		dryRun:      dryRun,
		pageSize:    1,
	}
}

func TestRecomputer_SavesChangedItems(t *testing.T) {
	stale := staleItem("inv-1")
	frozen := staleItem("inv-2")
	invs := &memoryInventories{all: []*domain.Inventory{
		{ID: "inv-1", Code: "A", Status: domain.StatusCount2Closed},
		{ID: "inv-2", Code: "B", Status: domain.StatusClosed},
	}}
	items := &memoryItems{byInventory: map[string][]*domain.InventoryItem{
		"inv-1": {stale},
		"inv-2": {frozen},
	}}

	changed, err := newRecomputer(invs, items, false).run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{stale.ID}, items.saved)
	require.True(t, stale.IsSettled())
	assert.Equal(t, 5, *stale.FinalQuantity)
	assert.False(t, frozen.IsSettled())

	changed, err = newRecomputer(invs, items, false).run(context.Background(), "A")
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Len(t, items.saved, 1)
}

func TestRecomputer_DryRunDoesNotSave(t *testing.T) {
	invs := &memoryInventories{all: []*domain.Inventory{{ID: "inv-1", Code: "A", Status: domain.StatusCount2Closed}}}
	items := &memoryItems{byInventory: map[string][]*domain.InventoryItem{"inv-1": {staleItem("inv-1")}}}

	changed, err := newRecomputer(invs, items, true).run(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Empty(t, items.saved)
}

func TestRecomputer_UnknownCode(t *testing.T) {
	_, err := newRecomputer(&memoryInventories{}, &memoryItems{}, true).run(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrInventoryNotFound)
}
