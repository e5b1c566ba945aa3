package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInventory(t *testing.T) *Inventory {
	t.Helper()
	inv, err := NewInventory(NewInventoryParams{Code: "INV-2024-01", Type: TypeGeneral, CreatedBy: "planner"})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

// advance drives an inventory to audit_mode through the regular rounds
func advanceToAuditMode(t *testing.T, inv *Inventory) {
	t.Helper()
	_, err := inv.Open("u")
	require.NoError(t, err)
	for _, round := range []Stage{StageFirst, StageSecond} {
		_, err = inv.StartCounting(round, "u")
		require.NoError(t, err)
		_, err = inv.FinishCounting(round, ClosureReport{Allowed: true}, "u")
		require.NoError(t, err)
	}
	require.Equal(t, StatusAuditMode, inv.Status)
}

func TestNewInventory(t *testing.T) {
	tests := []struct {
		name    string
		params  NewInventoryParams
		wantErr bool
	}{
		{"general", NewInventoryParams{Code: "G-1", Type: TypeGeneral}, false},
		{"cyclic with locations", NewInventoryParams{Code: "C-1", Type: TypeCyclic, Criteria: Criteria{LocationIDs: []string{"A"}}}, false},
		{"cyclic without locations", NewInventoryParams{Code: "C-2", Type: TypeCyclic}, true},
		{"targeted by category", NewInventoryParams{Code: "T-1", Type: TypeTargeted, Criteria: Criteria{CategoryIDs: []string{"cat"}}}, false},
		{"targeted without criteria", NewInventoryParams{Code: "T-2", Type: TypeTargeted}, true},
		{"missing code", NewInventoryParams{Type: TypeGeneral}, true},
		{"missing type", NewInventoryParams{Code: "X"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := NewInventory(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInventory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPlanning, inv.Status)
			assert.NotEmpty(t, inv.ID)
		})
	}
}

func TestInventory_Plan(t *testing.T) {
	inv := newTestInventory(t)
	items := inv.Plan([]StockLine{
		{ProductID: "p1", ProductCode: "P-1", LocationID: "A", Quantity: intPtr(10)},
		{ProductID: "p2", ProductCode: "P-2", LocationID: "B"},
	})

	require.Len(t, items, 2)
	assert.Equal(t, inv.ID, items[0].InventoryID)
	assert.Equal(t, 10, *items[0].ExpectedQuantity)
	assert.Nil(t, items[1].ExpectedQuantity)
	assert.Equal(t, ItemPending, items[1].Status)

	require.Len(t, inv.GetDomainEvents(), 1)
	created, ok := inv.GetDomainEvents()[0].(*InventoryCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, created.ItemCount)
	assert.Equal(t, "wms.stockcount.inventory-created", created.EventType())
}

func TestInventory_SelectLines(t *testing.T) {
	snapshot := []StockLine{
		{ProductID: "p1", CategoryID: "c1", LocationID: "A"},
		{ProductID: "p2", CategoryID: "c2", LocationID: "B"},
		{ProductID: "p3", CategoryID: "c1", LocationID: "C"},
	}

	general := &Inventory{Type: TypeGeneral}
	assert.Len(t, general.SelectLines(snapshot), 3)

	cyclic := &Inventory{Type: TypeCyclic, Criteria: Criteria{LocationIDs: []string{"B", "C"}}}
	lines := cyclic.SelectLines(snapshot)
	require.Len(t, lines, 2)
	assert.Equal(t, "p2", lines[0].ProductID)

	targeted := &Inventory{Type: TypeTargeted, Criteria: Criteria{ProductIDs: []string{"p2"}, CategoryIDs: []string{"c1"}}}
	assert.Len(t, targeted.SelectLines(snapshot), 3)

	targeted.Criteria = Criteria{CategoryIDs: []string{"c2"}}
	assert.Len(t, targeted.SelectLines(snapshot), 1)
}

func TestInventoryStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to InventoryStatus
		want     bool
	}{
		{StatusPlanning, StatusOpen, true},
		{StatusPlanning, StatusCount1Open, false},
		{StatusOpen, StatusCount1Open, true},
		{StatusCount1Open, StatusCount1Closed, true},
		{StatusCount1Closed, StatusCount2Open, true},
		{StatusCount2Closed, StatusAuditMode, true},
		{StatusCount2Closed, StatusCount3Required, true},
		{StatusCount2Closed, StatusCount3Open, true},
		{StatusCount3Required, StatusCount3Open, true},
		{StatusCount3Required, StatusAuditMode, false},
		{StatusCount3Closed, StatusAuditMode, true},
		{StatusAuditMode, StatusClosed, true},
		{StatusAuditMode, StatusCount1Open, false},
		{StatusCount2Open, StatusCancelled, true},
		{StatusClosed, StatusCancelled, false},
		{StatusCancelled, StatusPlanning, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewInventoryStatus(t *testing.T) {
	s, err := NewInventoryStatus("count3_required")
	require.NoError(t, err)
	assert.Equal(t, StatusCount3Required, s)

	_, err = NewInventoryStatus("counting")
	assert.Error(t, err)

	var parsed InventoryStatus
	require.NoError(t, parsed.UnmarshalText([]byte("audit_mode")))
	assert.True(t, parsed.Equals(StatusAuditMode))
}

func TestInventory_Lifecycle(t *testing.T) {
	t.Run("round two settles everything and skips third round", func(t *testing.T) {
		inv := newTestInventory(t)
		advanceToAuditMode(t, inv)

		var types []string
		for _, e := range inv.GetDomainEvents() {
			types = append(types, e.EventType())
		}
		assert.Len(t, types, 6)
		assert.NotNil(t, inv.StartDate)
	})

	t.Run("round two with unsettled items requires third round", func(t *testing.T) {
		inv := newTestInventory(t)
		_, _ = inv.Open("u")
		_, _ = inv.StartCounting(StageFirst, "u")
		_, _ = inv.FinishCounting(StageFirst, ClosureReport{}, "u")
		_, _ = inv.StartCounting(StageSecond, "u")

		applied, err := inv.FinishCounting(StageSecond, ClosureReport{Allowed: false, UnsettledCount: 2}, "u")
		require.NoError(t, err)
		require.Len(t, applied, 2)
		assert.Equal(t, StatusCount2Closed, applied[0].To)
		assert.Equal(t, StatusCount3Required, inv.Status)

		_, err = inv.StartCounting(StageThird, "u")
		require.NoError(t, err)
		applied, err = inv.FinishCounting(StageThird, ClosureReport{}, "u")
		require.NoError(t, err)
		assert.Equal(t, StatusAuditMode, applied[len(applied)-1].To)
	})

	t.Run("re-invoking a transition from a state already left is rejected", func(t *testing.T) {
		inv := newTestInventory(t)
		_, err := inv.Open("u")
		require.NoError(t, err)

		_, err = inv.Open("u")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusOpen, inv.Status)
	})

	t.Run("finishing a round that is not open", func(t *testing.T) {
		inv := newTestInventory(t)
		_, err := inv.FinishCounting(StageFirst, ClosureReport{}, "u")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusPlanning, inv.Status)
	})
}

func TestInventory_Close(t *testing.T) {
	t.Run("requires audit access", func(t *testing.T) {
		inv := newTestInventory(t)
		advanceToAuditMode(t, inv)

		_, err := inv.Close(ClosureReport{Allowed: true}, false, "clerk")
		assert.ErrorIs(t, err, ErrAuditAccessRequired)
	})

	t.Run("blocked by unsettled items", func(t *testing.T) {
		inv := newTestInventory(t)
		advanceToAuditMode(t, inv)

		_, err := inv.Close(ClosureReport{Allowed: false, UnsettledCount: 3, TotalItems: 10}, true, "auditor")
		var ruleErr *RuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, CodeUnsettledItems, ruleErr.Code)
		assert.Equal(t, "3", ruleErr.Details["unsettledCount"])
		assert.Equal(t, StatusAuditMode, inv.Status)
	})

	t.Run("only from audit mode", func(t *testing.T) {
		inv := newTestInventory(t)
		_, err := inv.Close(ClosureReport{Allowed: true}, true, "auditor")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("closes", func(t *testing.T) {
		inv := newTestInventory(t)
		advanceToAuditMode(t, inv)

		tr, err := inv.Close(ClosureReport{Allowed: true}, true, "auditor")
		require.NoError(t, err)
		assert.Equal(t, StatusAuditMode, tr.From)
		assert.Equal(t, StatusClosed, inv.Status)
		assert.NotNil(t, inv.EndDate)

		events := inv.GetDomainEvents()
		assert.Equal(t, "wms.stockcount.inventory-closed", events[len(events)-1].EventType())
	})
}

func TestInventory_CancelAndDelete(t *testing.T) {
	inv := newTestInventory(t)

	assert.ErrorIs(t, inv.EnsureDeletable(), ErrNotCancelled)

	_, err := inv.Cancel("   ", "u")
	assert.ErrorIs(t, err, ErrCancelReasonRequired)
	assert.Equal(t, StatusPlanning, inv.Status)

	_, err = inv.Cancel("wrong scope", "u")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.Equal(t, "wrong scope", inv.CancelReason)
	assert.NoError(t, inv.EnsureDeletable())
}

func TestInventory_TerminalImmutability(t *testing.T) {
	closed := newTestInventory(t)
	advanceToAuditMode(t, closed)
	_, err := closed.Close(ClosureReport{Allowed: true}, true, "auditor")
	require.NoError(t, err)

	cancelled := newTestInventory(t)
	_, err = cancelled.Cancel("duplicate", "u")
	require.NoError(t, err)

	for _, inv := range []*Inventory{closed, cancelled} {
		t.Run(inv.Status.String(), func(t *testing.T) {
			status := inv.Status

			_, err := inv.Open("u")
			assert.ErrorIs(t, err, ErrInventoryTerminal)
			_, err = inv.StartCounting(StageFirst, "u")
			assert.ErrorIs(t, err, ErrInventoryTerminal)
			_, err = inv.Cancel("again", "u")
			assert.ErrorIs(t, err, ErrInventoryTerminal)
			_, err = inv.Close(ClosureReport{Allowed: true}, true, "u")
			assert.ErrorIs(t, err, ErrInventoryTerminal)
			assert.ErrorIs(t, inv.AcceptsCount(StageAudit, true), ErrInventoryTerminal)
			assert.ErrorIs(t, inv.AcceptsScan(StageFirst), ErrInventoryTerminal)

			assert.Equal(t, status, inv.Status)
		})
	}
}

func TestInventory_AcceptsCount(t *testing.T) {
	inv := newTestInventory(t)
	_, _ = inv.Open("u")
	_, _ = inv.StartCounting(StageFirst, "u")

	assert.NoError(t, inv.AcceptsCount(StageFirst, false))
	assert.ErrorIs(t, inv.AcceptsCount(StageSecond, false), ErrStageNotOpen)
	assert.ErrorIs(t, inv.AcceptsCount(StageAudit, true), ErrStageNotOpen)

	inv.Status = StatusAuditMode
	assert.ErrorIs(t, inv.AcceptsCount(StageAudit, false), ErrAuditAccessRequired)
	assert.NoError(t, inv.AcceptsCount(StageAudit, true))
	assert.ErrorIs(t, inv.AcceptsScan(StageAudit), ErrStageNotOpen)
}

func TestInventory_SerialGuards(t *testing.T) {
	counting := newTestInventory(t)
	_, err := counting.Open("u")
	require.NoError(t, err)
	_, err = counting.StartCounting(StageFirst, "u")
	require.NoError(t, err)
	assert.NoError(t, counting.AcceptsSerialResolution())
	assert.ErrorIs(t, counting.AcceptsSerialMigration(), ErrNotClosed)
	assert.ErrorIs(t, counting.AcceptsNotFoundFinalization(), ErrInvalidTransition)

	audit := newTestInventory(t)
	advanceToAuditMode(t, audit)
	assert.NoError(t, audit.AcceptsNotFoundFinalization())
	assert.ErrorIs(t, audit.AcceptsSerialMigration(), ErrNotClosed)

	_, err = audit.Close(ClosureReport{Allowed: true}, true, "auditor")
	require.NoError(t, err)
	assert.NoError(t, audit.AcceptsSerialResolution())
	assert.NoError(t, audit.AcceptsSerialMigration())
	assert.NoError(t, audit.AcceptsNotFoundFinalization())

	_, err = counting.Cancel("scope changed", "u")
	require.NoError(t, err)
	assert.ErrorIs(t, counting.AcceptsSerialResolution(), ErrInventoryTerminal)
	assert.ErrorIs(t, counting.AcceptsSerialMigration(), ErrInventoryTerminal)
	assert.ErrorIs(t, counting.AcceptsNotFoundFinalization(), ErrInvalidTransition)
}

func TestInventory_MarkMigrated(t *testing.T) {
	inv := newTestInventory(t)
	assert.ErrorIs(t, inv.MarkMigrated("u", 3), ErrNotClosed)

	advanceToAuditMode(t, inv)
	_, err := inv.Close(ClosureReport{Allowed: true}, true, "auditor")
	require.NoError(t, err)

	require.NoError(t, inv.MarkMigrated("auditor", 3))
	assert.True(t, inv.Migrated)
	assert.NotNil(t, inv.MigratedAt)

	assert.ErrorIs(t, inv.MarkMigrated("auditor", 3), ErrAlreadyMigrated)
}

func TestAuditPolicy(t *testing.T) {
	policy := NewAuditPolicy([]string{"Admin", " auditor "})

	assert.True(t, policy.HasAuditAccess("admin"))
	assert.True(t, policy.HasAuditAccess("AUDITOR"))
	assert.False(t, policy.HasAuditAccess("counter"))
	assert.False(t, policy.HasAuditAccess(""))
}
