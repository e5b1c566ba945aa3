package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/internal/infrastructure/locking"
	"github.com/wms-platform/stockcount-service/pkg/logging"
)

type fakeInventoryRepo struct {
	mu          sync.Mutex
	inventories map[string]*domain.Inventory
	saveErr     error
}

func (f *fakeInventoryRepo) store(inv *domain.Inventory) {
	if f.inventories == nil {
		f.inventories = make(map[string]*domain.Inventory)
	}
	cp := *inv
	cp.ClearDomainEvents()
	f.inventories[inv.ID] = &cp
}

func (f *fakeInventoryRepo) Create(ctx context.Context, inv *domain.Inventory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(inv)
	return nil
}

func (f *fakeInventoryRepo) Save(ctx context.Context, inv *domain.Inventory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	current, ok := f.inventories[inv.ID]
	if !ok {
		return domain.ErrInventoryNotFound
	}
	if current.Version != inv.Version {
		return domain.ErrConcurrentModification
	}
	inv.Version++
	f.store(inv)
	return nil
}

func (f *fakeInventoryRepo) FindByID(ctx context.Context, id string) (*domain.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.inventories[id]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInventoryRepo) FindByCode(ctx context.Context, code string) (*domain.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.inventories {
		if inv.Code == code {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInventoryNotFound
}

func (f *fakeInventoryRepo) List(ctx context.Context, filter domain.InventoryFilter) ([]*domain.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Inventory
	for _, inv := range f.inventories {
		if filter.Status != nil && !inv.Status.Equals(*filter.Status) {
			continue
		}
		if filter.Type != nil && inv.Type != *filter.Type {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeInventoryRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inventories, id)
	return nil
}

type fakeItemRepo struct {
	mu      sync.Mutex
	items   map[string]*domain.InventoryItem
	order   []string
	saveErr map[string]error
	onSave  func()
}

func (f *fakeItemRepo) InsertMany(ctx context.Context, items []*domain.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = make(map[string]*domain.InventoryItem)
	}
	for _, item := range items {
		cp := *item
		f.items[item.ID] = &cp
		f.order = append(f.order, item.ID)
	}
	return nil
}

func (f *fakeItemRepo) Save(ctx context.Context, item *domain.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErr[item.ID]; err != nil {
		return err
	}
	current, ok := f.items[item.ID]
	if !ok {
		return domain.ErrItemNotFound
	}
	if current.Version != item.Version {
		return domain.ErrConcurrentModification
	}
	item.Version++
	cp := *item
	f.items[item.ID] = &cp
	if f.onSave != nil {
		f.onSave()
	}
	return nil
}

func (f *fakeItemRepo) FindByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (f *fakeItemRepo) FindByInventory(ctx context.Context, inventoryID string, filter domain.ItemFilter) ([]*domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.InventoryItem, 0)
	for _, id := range f.order {
		item, ok := f.items[id]
		if !ok || item.InventoryID != inventoryID {
			continue
		}
		if filter.UnsettledOnly && item.IsSettled() {
			continue
		}
		if filter.Status != nil && !item.Status.Equals(*filter.Status) {
			continue
		}
		if filter.Classification != nil && !item.Classification.Equals(*filter.Classification) {
			continue
		}
		if filter.LocationID != "" && item.LocationID != filter.LocationID {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeItemRepo) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, item := range f.items {
		if item.InventoryID == inventoryID {
			delete(f.items, id)
			n++
		}
	}
	return n, nil
}

type fakeCountLedger struct {
	mu      sync.Mutex
	entries []*domain.Count
}

func (f *fakeCountLedger) Append(ctx context.Context, count *domain.Count) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *count
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeCountLedger) SupersedeStage(ctx context.Context, itemID string, stage domain.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.entries {
		if c.ItemID == itemID && c.Stage == stage {
			c.Superseded = true
		}
	}
	return nil
}

func (f *fakeCountLedger) ListByItem(ctx context.Context, itemID string) ([]*domain.Count, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Count
	for _, c := range f.entries {
		if c.ItemID == itemID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCountLedger) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var n int64
	for _, c := range f.entries {
		if c.InventoryID == inventoryID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.entries = kept
	return n, nil
}

type fakeSerialRepo struct {
	mu      sync.Mutex
	serials map[string]*domain.SerialItem
	order   []string
	saveErr error
}

func (f *fakeSerialRepo) InsertMany(ctx context.Context, items []*domain.SerialItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serials == nil {
		f.serials = make(map[string]*domain.SerialItem)
	}
	for _, s := range items {
		cp := *s
		f.serials[s.ID] = &cp
		f.order = append(f.order, s.ID)
	}
	return nil
}

func (f *fakeSerialRepo) Save(ctx context.Context, item *domain.SerialItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	current, ok := f.serials[item.ID]
	if !ok {
		return domain.ErrSerialNotFound
	}
	if current.Version != item.Version {
		return domain.ErrConcurrentModification
	}
	item.Version++
	cp := *item
	f.serials[item.ID] = &cp
	return nil
}

func (f *fakeSerialRepo) FindByID(ctx context.Context, id string) (*domain.SerialItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.serials[id]
	if !ok {
		return nil, domain.ErrSerialNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSerialRepo) FindBySerial(ctx context.Context, inventoryID, serialNumber string) (*domain.SerialItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.serials {
		if s.InventoryID == inventoryID && s.SerialNumber == serialNumber {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSerialNotFound
}

func (f *fakeSerialRepo) FindByInventory(ctx context.Context, inventoryID string, resolution *domain.Resolution) ([]*domain.SerialItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.SerialItem, 0)
	for _, id := range f.order {
		s, ok := f.serials[id]
		if !ok || s.InventoryID != inventoryID {
			continue
		}
		if resolution != nil && !s.Resolution.Equals(*resolution) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSerialRepo) DeleteByInventory(ctx context.Context, inventoryID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.serials {
		if s.InventoryID == inventoryID {
			delete(f.serials, id)
			n++
		}
	}
	return n, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (f *fakeEventStore) Append(ctx context.Context, events ...domain.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEventStore) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAuditRecorder) Record(ctx context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeERPClient struct {
	mu      sync.Mutex
	batches [][]domain.ERPLine
	results []domain.ERPResult
	err     error
}

func (f *fakeERPClient) PushAdjustments(ctx context.Context, lines []domain.ERPLine) (domain.ERPResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.ERPResult{}, f.err
	}
	f.batches = append(f.batches, lines)
	if i := len(f.batches) - 1; i < len(f.results) {
		return f.results[i], nil
	}
	return domain.ERPResult{Success: true}, nil
}

// testEnv wires every service against in-memory collaborators
type testEnv struct {
	inventories *fakeInventoryRepo
	items       *fakeItemRepo
	counts      *fakeCountLedger
	serials     *fakeSerialRepo
	events      *fakeEventStore
	audit       *fakeAuditRecorder
	erp         *fakeERPClient

	lifecycle *LifecycleService
	counter   *CountService
	serial    *SerialService
	migration *MigrationService
	query     *QueryService
}

const (
	auditorRole = "auditor"
	counterRole = "counter"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		inventories: &fakeInventoryRepo{},
		items:       &fakeItemRepo{},
		counts:      &fakeCountLedger{},
		serials:     &fakeSerialRepo{},
		events:      &fakeEventStore{},
		audit:       &fakeAuditRecorder{},
		erp:         &fakeERPClient{},
	}
	deps := Dependencies{
		Inventories: env.inventories,
		Items:       env.items,
		Counts:      env.counts,
		Serials:     env.serials,
		Events:      env.events,
		Tx:          fakeTransactor{},
		Locker:      locking.NewLocalLocker(time.Second),
		Audit:       env.audit,
		Policy:      domain.NewAuditPolicy([]string{"admin", auditorRole}),
		Logger:      logging.NewNop(),
		BatchSize:   2,
	}
	env.serial = NewSerialService(deps)
	env.lifecycle = NewLifecycleService(deps, env.serial)
	env.counter = NewCountService(deps)
	env.migration = NewMigrationService(deps, env.erp, MigrationConfig{BatchSize: 2})
	env.query = NewQueryService(deps)
	return env
}

func intPtr(v int) *int { return &v }

// createInventory creates a general inventory with one item per expected quantity
func (e *testEnv) createInventory(t *testing.T, code string, expected ...int) *InventoryDTO {
	t.Helper()
	snapshot := make([]StockLineInput, 0, len(expected))
	for i, qty := range expected {
		snapshot = append(snapshot, StockLineInput{
			ProductID:   "prod-" + string(rune('a'+i)),
			ProductCode: "SKU-" + string(rune('A'+i)),
			LocationID:  "LOC-1",
			Quantity:    intPtr(qty),
		})
	}
	inv, err := e.lifecycle.CreateInventory(context.Background(), CreateInventoryCommand{
		Code:      code,
		Type:      "general",
		Snapshot:  snapshot,
		CreatedBy: "planner",
	})
	require.NoError(t, err)
	return inv
}

// itemIDs returns the inventory's item IDs in creation order
func (e *testEnv) itemIDs(t *testing.T, inventoryID string) []string {
	t.Helper()
	items, err := e.items.FindByInventory(context.Background(), inventoryID, domain.ItemFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *testEnv) startRound(t *testing.T, inventoryID string, round int) {
	t.Helper()
	ctx := context.Background()
	if round == 1 {
		_, err := e.lifecycle.OpenInventory(ctx, TransitionCommand{InventoryID: inventoryID, Actor: "supervisor"})
		require.NoError(t, err)
	}
	_, err := e.lifecycle.StartCounting(ctx, CountingRoundCommand{InventoryID: inventoryID, Round: round, Actor: "supervisor"})
	require.NoError(t, err)
}

func (e *testEnv) finishRound(t *testing.T, inventoryID string, round int) *TransitionResultDTO {
	t.Helper()
	res, err := e.lifecycle.FinishCounting(context.Background(), CountingRoundCommand{InventoryID: inventoryID, Round: round, Actor: "supervisor"})
	require.NoError(t, err)
	return res
}

func (e *testEnv) recordCount(t *testing.T, itemID string, stage, qty int) *CountResultDTO {
	t.Helper()
	res, err := e.counter.RecordCount(context.Background(), RecordCountCommand{
		ItemID: itemID, Stage: stage, Quantity: qty, CounterID: "counter-1", Role: auditorRole,
	})
	require.NoError(t, err)
	return res
}
