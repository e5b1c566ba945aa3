package application

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/errors"
)

func requireAppError(t *testing.T, err error, code string, status int) *errors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

func TestCountService_AgreeingCountsSettleAndSkipRoundThree(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10)
	itemID := env.itemIDs(t, inv.ID)[0]

	env.startRound(t, inv.ID, 1)
	res := env.recordCount(t, itemID, 1, 10)
	assert.Equal(t, "in_progress", res.Item.Status)
	env.finishRound(t, inv.ID, 1)

	env.startRound(t, inv.ID, 2)
	res = env.recordCount(t, itemID, 2, 10)
	assert.Equal(t, "no_divergence", res.Item.Classification)
	assert.Equal(t, "confirmed", res.Item.Status)
	require.NotNil(t, res.Item.FinalQuantity)
	assert.Equal(t, 10, *res.Item.FinalQuantity)

	finished := env.finishRound(t, inv.ID, 2)
	assert.Equal(t, "audit_mode", finished.Inventory.Status)
	require.Len(t, finished.Transitions, 2)
	assert.Equal(t, "count2_closed", finished.Transitions[0].To)
	assert.Equal(t, "audit_mode", finished.Transitions[1].To)
}

func TestCountService_DisagreementResolvedByThirdCount(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10)
	itemID := env.itemIDs(t, inv.ID)[0]

	env.startRound(t, inv.ID, 1)
	env.recordCount(t, itemID, 1, 10)
	env.finishRound(t, inv.ID, 1)
	env.startRound(t, inv.ID, 2)
	res := env.recordCount(t, itemID, 2, 12)
	assert.Equal(t, "needs_third_count", res.Item.Classification)
	assert.Equal(t, "pending_recount", res.Item.Status)

	finished := env.finishRound(t, inv.ID, 2)
	assert.Equal(t, "count3_required", finished.Inventory.Status)

	env.startRound(t, inv.ID, 3)
	res = env.recordCount(t, itemID, 3, 12)
	assert.Equal(t, "resolved_third_count", res.Item.Classification)
	assert.Equal(t, "divergent", res.Item.Status)
	require.NotNil(t, res.Item.Divergence)
	assert.Equal(t, 2, *res.Item.Divergence)

	finished = env.finishRound(t, inv.ID, 3)
	assert.Equal(t, "audit_mode", finished.Inventory.Status)
}

func TestCountService_RecordCountRejections(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10)
	itemID := env.itemIDs(t, inv.ID)[0]
	ctx := context.Background()

	_, err := env.counter.RecordCount(ctx, RecordCountCommand{ItemID: itemID, Stage: 1, Quantity: 3, CounterID: "c"})
	requireAppError(t, err, domain.CodeStageNotOpen, http.StatusBadRequest)

	env.startRound(t, inv.ID, 1)

	tests := []struct {
		name   string
		cmd    RecordCountCommand
		code   string
		status int
	}{
		{"invalid stage", RecordCountCommand{ItemID: itemID, Stage: 5, Quantity: 1}, domain.CodeInvalidStage, http.StatusBadRequest},
		{"negative quantity", RecordCountCommand{ItemID: itemID, Stage: 1, Quantity: -1}, domain.CodeNegativeQuantity, http.StatusBadRequest},
		{"wrong stage", RecordCountCommand{ItemID: itemID, Stage: 2, Quantity: 1}, domain.CodeStageNotOpen, http.StatusBadRequest},
		{"unknown item", RecordCountCommand{ItemID: "missing", Stage: 1, Quantity: 1}, domain.CodeItemNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.counter.RecordCount(ctx, tt.cmd)
			requireAppError(t, err, tt.code, tt.status)
		})
	}

	env.recordCount(t, itemID, 1, 4)
	_, err = env.counter.RecordCount(ctx, RecordCountCommand{ItemID: itemID, Stage: 1, Quantity: 5, CounterID: "c"})
	requireAppError(t, err, domain.CodeStageAlreadyCounted, http.StatusBadRequest)
	assert.True(t, stderrors.Is(err, domain.ErrStageAlreadyCounted))

	counts, err := env.counter.ListCounts(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 4, counts[0].Quantity)
}

func TestCountService_MissingExpectedQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inv, err := env.lifecycle.CreateInventory(ctx, CreateInventoryCommand{
		Code:      "INV-NIL",
		Type:      "general",
		Snapshot:  []StockLineInput{{ProductID: "p", ProductCode: "SKU", LocationID: "LOC-1"}},
		CreatedBy: "planner",
	})
	require.NoError(t, err)
	itemID := env.itemIDs(t, inv.ID)[0]
	env.startRound(t, inv.ID, 1)

	_, err = env.counter.RecordCount(ctx, RecordCountCommand{ItemID: itemID, Stage: 1, Quantity: 3, CounterID: "c"})
	requireAppError(t, err, domain.CodeMissingExpectedQuantity, http.StatusUnprocessableEntity)

	counts, err := env.counter.ListCounts(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

// driveToAuditMode counts every item with the given pairs of round 1/2
// quantities and runs round 3 with thirds when round 2 leaves items unsettled
func driveToAuditMode(t *testing.T, env *testEnv, inventoryID string, first, second []int, third map[int]int) {
	t.Helper()
	ids := env.itemIDs(t, inventoryID)

	env.startRound(t, inventoryID, 1)
	for i, q := range first {
		env.recordCount(t, ids[i], 1, q)
	}
	env.finishRound(t, inventoryID, 1)

	env.startRound(t, inventoryID, 2)
	for i, q := range second {
		env.recordCount(t, ids[i], 2, q)
	}
	res := env.finishRound(t, inventoryID, 2)
	if res.Inventory.Status == "audit_mode" {
		return
	}

	env.startRound(t, inventoryID, 3)
	for i, q := range third {
		env.recordCount(t, ids[i], 3, q)
	}
	res = env.finishRound(t, inventoryID, 3)
	require.Equal(t, "audit_mode", res.Inventory.Status)
}

func TestCountService_AuditCountRequiresAccessAndSupersedes(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10)
	itemID := env.itemIDs(t, inv.ID)[0]
	driveToAuditMode(t, env, inv.ID, []int{10}, []int{12}, map[int]int{0: 14})
	ctx := context.Background()

	item, err := env.query.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "needs_audit", item.Classification)

	_, err = env.counter.RecordCount(ctx, RecordCountCommand{ItemID: itemID, Stage: 4, Quantity: 11, CounterID: "c", Role: counterRole})
	requireAppError(t, err, domain.CodeAuditAccessRequired, http.StatusForbidden)

	res := env.recordCount(t, itemID, 4, 11)
	assert.Equal(t, "audit_settled", res.Item.Classification)
	assert.Equal(t, 11, *res.Item.FinalQuantity)

	res = env.recordCount(t, itemID, 4, 10)
	assert.Equal(t, "confirmed", res.Item.Status)
	assert.Equal(t, 10, *res.Item.FinalQuantity)

	counts, err := env.counter.ListCounts(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, counts, 5)
	assert.True(t, counts[3].Superseded)
	assert.False(t, counts[4].Superseded)

	assert.Contains(t, env.events.types(), "wms.stockcount.item-settled")
}

func TestCountService_BulkConfirm(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10, 10, 10)
	ids := env.itemIDs(t, inv.ID)
	ctx := context.Background()

	// item 0 agrees, item 1 needs an audit after round 3, item 2 is never counted
	driveToAuditMode(t, env, inv.ID, []int{10, 8}, []int{10, 9}, map[int]int{1: 7})

	_, err := env.counter.BulkConfirm(ctx, BulkConfirmCommand{InventoryID: inv.ID, Actor: "lead", Role: counterRole})
	requireAppError(t, err, domain.CodeAuditAccessRequired, http.StatusForbidden)

	res, err := env.counter.BulkConfirm(ctx, BulkConfirmCommand{InventoryID: inv.ID, Actor: "lead", Role: auditorRole})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)

	item, err := env.query.GetItem(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "audit_settled", item.Classification)
	assert.Equal(t, 7, *item.FinalQuantity)

	report, err := env.lifecycle.CanClose(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, report.Allowed)
	assert.Equal(t, []string{ids[2]}, report.UnsettledItemIDs)
}

func TestCountService_BulkConfirmReportsFailures(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10, 10)
	ids := env.itemIDs(t, inv.ID)
	driveToAuditMode(t, env, inv.ID, []int{8, 8}, []int{9, 9}, map[int]int{0: 7, 1: 7})

	env.items.saveErr = map[string]error{ids[0]: stderrors.New("disk full")}

	res, err := env.counter.BulkConfirm(context.Background(), BulkConfirmCommand{InventoryID: inv.ID, Actor: "lead", Role: auditorRole})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ids[0], res.Failures[0].ID)
	assert.Equal(t, errors.CodeInternalError, res.Failures[0].Code)
}

func TestCountService_ThirdCountSettlesItemMissedInRoundTwo(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10, 10)
	ids := env.itemIDs(t, inv.ID)
	ctx := context.Background()

	// item 1 is counted in round 1 only and matched by the third count
	driveToAuditMode(t, env, inv.ID, []int{10, 8}, []int{10}, map[int]int{1: 8})

	item, err := env.query.GetItem(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "resolved_third_count", item.Classification)
	require.NotNil(t, item.FinalQuantity)
	assert.Equal(t, 8, *item.FinalQuantity)
	assert.Nil(t, item.Count2)

	report, err := env.lifecycle.CanClose(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, report.Allowed)
}

func TestCountService_BulkConfirmInterruptedKeepsProgress(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createInventory(t, "INV-1", 10, 10, 10, 10)
	driveToAuditMode(t, env, inv.ID, []int{8, 8, 8, 8}, []int{9, 9, 9, 9}, map[int]int{0: 7, 1: 7, 2: 7, 3: 7})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	saves := 0
	env.items.onSave = func() {
		saves++
		if saves == 2 {
			cancel()
		}
	}

	res, err := env.counter.BulkConfirm(ctx, BulkConfirmCommand{InventoryID: inv.ID, Actor: "lead", Role: auditorRole})
	appErr := requireAppError(t, err, CodeBatchInterrupted, http.StatusServiceUnavailable)
	assert.True(t, appErr.Retryable)
	assert.Equal(t, "2", appErr.Details["confirmed"])
	assert.Equal(t, "0", appErr.Details["failed"])

	require.NotNil(t, res)
	assert.Equal(t, 2, res.Confirmed)
	assert.Equal(t, 0, res.Failed)

	report, err := env.lifecycle.CanClose(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UnsettledCount)
}
