package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Criteria scopes which stock lines become items
type Criteria struct {
	LocationIDs []string `bson:"locationIds,omitempty" json:"locationIds,omitempty"`
	CategoryIDs []string `bson:"categoryIds,omitempty" json:"categoryIds,omitempty"`
	ProductIDs  []string `bson:"productIds,omitempty" json:"productIds,omitempty"`
}

// StockLine is one row of the stock snapshot an inventory is created from.
// Quantity is nil when master data has no on-hand figure for the line.
type StockLine struct {
	ProductID   string
	ProductCode string
	CategoryID  string
	LocationID  string
	Quantity    *int
}

// Inventory is the counting session aggregate
type Inventory struct {
	ID                    string          `bson:"_id" json:"id"`
	Code                  string          `bson:"code" json:"code"`
	Description           string          `bson:"description,omitempty" json:"description,omitempty"`
	Type                  InventoryType   `bson:"type" json:"type"`
	Status                InventoryStatus `bson:"status" json:"status"`
	Criteria              Criteria        `bson:"criteria" json:"criteria"`
	BlocksSystemMovements bool            `bson:"blocksSystemMovements" json:"blocksSystemMovements"`
	StartDate             *time.Time      `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate               *time.Time      `bson:"endDate,omitempty" json:"endDate,omitempty"`
	PredictedEndDate      *time.Time      `bson:"predictedEndDate,omitempty" json:"predictedEndDate,omitempty"`
	CreatedBy             string          `bson:"createdBy" json:"createdBy"`
	CancelReason          string          `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	Migrated              bool            `bson:"migrated" json:"migrated"`
	MigratedAt            *time.Time      `bson:"migratedAt,omitempty" json:"migratedAt,omitempty"`
	MigratedBy            string          `bson:"migratedBy,omitempty" json:"migratedBy,omitempty"`
	Version               int64           `bson:"version" json:"version"`
	CreatedAt             time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time       `bson:"updatedAt" json:"updatedAt"`

	domainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewInventoryParams holds the inputs for creating an inventory
type NewInventoryParams struct {
	Code                  string
	Description           string
	Type                  InventoryType
	Criteria              Criteria
	BlocksSystemMovements bool
	PredictedEndDate      *time.Time
	CreatedBy             string
}

// NewInventory creates an inventory in planning
func NewInventory(p NewInventoryParams) (*Inventory, error) {
	if strings.TrimSpace(p.Code) == "" {
		return nil, newRuleError(KindValidation, CodeInvalidInventory, "inventory code is required")
	}
	if p.Type.IsZero() {
		return nil, newRuleError(KindValidation, CodeInvalidInventory, "inventory type is required")
	}
	switch {
	case p.Type == TypeCyclic && len(p.Criteria.LocationIDs) == 0:
		return nil, newRuleError(KindValidation, CodeInvalidInventory, "cyclic inventory requires location criteria")
	case p.Type == TypeTargeted && len(p.Criteria.ProductIDs) == 0 && len(p.Criteria.CategoryIDs) == 0:
		return nil, newRuleError(KindValidation, CodeInvalidInventory, "targeted inventory requires product or category criteria")
	}

	now := time.Now().UTC()
	inv := &Inventory{
		ID:                    uuid.New().String(),
		Code:                  strings.TrimSpace(p.Code),
		Description:           p.Description,
		Type:                  p.Type,
		Status:                StatusPlanning,
		Criteria:              p.Criteria,
		BlocksSystemMovements: p.BlocksSystemMovements,
		PredictedEndDate:      p.PredictedEndDate,
		CreatedBy:             p.CreatedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	return inv, nil
}

// Plan generates the items to count from a stock snapshot and records the
// creation event.
func (inv *Inventory) Plan(snapshot []StockLine) []*InventoryItem {
	lines := inv.SelectLines(snapshot)
	items := make([]*InventoryItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, NewInventoryItem(inv.ID, line))
	}
	inv.AddDomainEvent(&InventoryCreatedEvent{
		InventoryID: inv.ID,
		Code:        inv.Code,
		Type:        inv.Type.String(),
		ItemCount:   len(items),
		CreatedBy:   inv.CreatedBy,
		CreatedAt:   inv.CreatedAt,
	})
	return items
}

// SelectLines filters a snapshot down to the lines this inventory counts
func (inv *Inventory) SelectLines(snapshot []StockLine) []StockLine {
	locations := toSet(inv.Criteria.LocationIDs)
	products := toSet(inv.Criteria.ProductIDs)
	categories := toSet(inv.Criteria.CategoryIDs)

	var selected []StockLine
	for _, line := range snapshot {
		var keep bool
		switch inv.Type {
		case TypeGeneral:
			keep = true
		case TypeCyclic:
			_, keep = locations[line.LocationID]
		case TypeTargeted:
			_, byProduct := products[line.ProductID]
			_, byCategory := categories[line.CategoryID]
			keep = byProduct || byCategory
		}
		if keep {
			selected = append(selected, line)
		}
	}
	return selected
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Transition is one applied lifecycle move
type Transition struct {
	From   InventoryStatus
	To     InventoryStatus
	Actor  string
	Reason string
	At     time.Time
}

func (inv *Inventory) transition(to InventoryStatus, actor, reason string) (Transition, error) {
	if inv.Status.IsTerminal() {
		return Transition{}, newRuleError(KindState, CodeInventoryTerminal,
			"inventory %s is %s", inv.Code, inv.Status)
	}
	if !inv.Status.CanTransitionTo(to) {
		return Transition{}, NewInvalidTransitionError(inv.Status, to)
	}

	now := time.Now().UTC()
	t := Transition{From: inv.Status, To: to, Actor: actor, Reason: reason, At: now}
	inv.Status = to
	inv.UpdatedAt = now

	switch to {
	case StatusCount1Open:
		inv.StartDate = &now
	case StatusClosed, StatusCancelled:
		inv.EndDate = &now
	}

	inv.AddDomainEvent(&InventoryStatusChangedEvent{
		InventoryID: inv.ID,
		Code:        inv.Code,
		From:        t.From.String(),
		To:          t.To.String(),
		Actor:       actor,
		Reason:      reason,
		ChangedAt:   now,
	})
	return t, nil
}

// EnsureMutable rejects any change to a closed or cancelled inventory
func (inv *Inventory) EnsureMutable() error {
	if inv.Status.IsTerminal() {
		return newRuleError(KindState, CodeInventoryTerminal, "inventory %s is %s", inv.Code, inv.Status)
	}
	return nil
}

// Open moves planning to open
func (inv *Inventory) Open(actor string) (Transition, error) {
	return inv.transition(StatusOpen, actor, "")
}

// StartCounting opens count round 1, 2 or 3
func (inv *Inventory) StartCounting(round Stage, actor string) (Transition, error) {
	switch round {
	case StageFirst:
		return inv.transition(StatusCount1Open, actor, "")
	case StageSecond:
		return inv.transition(StatusCount2Open, actor, "")
	case StageThird:
		return inv.transition(StatusCount3Open, actor, "")
	default:
		return Transition{}, newRuleError(KindValidation, CodeInvalidStage, "round %d cannot be started", round)
	}
}

// FinishCounting closes a count round. Round 2 then advances to audit_mode
// when every item is settled and to count3_required otherwise; round 3
// always advances to audit_mode.
func (inv *Inventory) FinishCounting(round Stage, report ClosureReport, actor string) ([]Transition, error) {
	var closed InventoryStatus
	switch round {
	case StageFirst:
		closed = StatusCount1Closed
	case StageSecond:
		closed = StatusCount2Closed
	case StageThird:
		closed = StatusCount3Closed
	default:
		return nil, newRuleError(KindValidation, CodeInvalidStage, "round %d cannot be finished", round)
	}

	first, err := inv.transition(closed, actor, "")
	if err != nil {
		return nil, err
	}
	applied := []Transition{first}

	var next InventoryStatus
	switch round {
	case StageSecond:
		next = StatusCount3Required
		if report.Allowed {
			next = StatusAuditMode
		}
	case StageThird:
		next = StatusAuditMode
	default:
		return applied, nil
	}

	second, err := inv.transition(next, actor, "")
	if err != nil {
		return nil, err
	}
	return append(applied, second), nil
}

// Close finalizes an inventory in audit mode once every item is settled
func (inv *Inventory) Close(report ClosureReport, auditAccess bool, actor string) (Transition, error) {
	if err := inv.EnsureMutable(); err != nil {
		return Transition{}, err
	}
	if !auditAccess {
		return Transition{}, newRuleError(KindForbidden, CodeAuditAccessRequired,
			"closing an inventory requires audit capability")
	}
	if !inv.Status.Equals(StatusAuditMode) {
		return Transition{}, NewInvalidTransitionError(inv.Status, StatusClosed)
	}
	if !report.Allowed {
		return Transition{}, NewUnsettledItemsError(report)
	}
	return inv.transition(StatusClosed, actor, "")
}

// Cancel abandons the inventory; a reason is mandatory
func (inv *Inventory) Cancel(reason, actor string) (Transition, error) {
	if err := inv.EnsureMutable(); err != nil {
		return Transition{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Transition{}, ErrCancelReasonRequired
	}
	t, err := inv.transition(StatusCancelled, actor, reason)
	if err != nil {
		return Transition{}, err
	}
	inv.CancelReason = reason
	return t, nil
}

// EnsureDeletable allows deletion only of cancelled inventories
func (inv *Inventory) EnsureDeletable() error {
	if !inv.Status.Equals(StatusCancelled) {
		return newRuleError(KindState, CodeNotCancelled, "inventory %s is %s", inv.Code, inv.Status)
	}
	return nil
}

// AcceptsCount checks that a count for the stage may be recorded now
func (inv *Inventory) AcceptsCount(stage Stage, auditAccess bool) error {
	if err := inv.EnsureMutable(); err != nil {
		return err
	}
	open, ok := inv.Status.OpenStage()
	if !ok || open != stage {
		return newRuleError(KindValidation, CodeStageNotOpen,
			"stage %d is not open, inventory is %s", stage, inv.Status)
	}
	if stage == StageAudit && !auditAccess {
		return newRuleError(KindForbidden, CodeAuditAccessRequired, "audit counts require audit capability")
	}
	return nil
}

// AcceptsScan checks that serial readings for the stage may be recorded now.
// Only regular count rounds take scans.
func (inv *Inventory) AcceptsScan(stage Stage) error {
	if err := inv.EnsureMutable(); err != nil {
		return err
	}
	open, ok := inv.Status.OpenStage()
	if !ok || open != stage || stage == StageAudit {
		return newRuleError(KindValidation, CodeStageNotOpen,
			"serial scans for stage %d are not accepted, inventory is %s", stage, inv.Status)
	}
	return nil
}

// AcceptsSerialRegistration checks that expected serials may still be
// registered, which ends once round 1 closes
func (inv *Inventory) AcceptsSerialRegistration() error {
	switch inv.Status {
	case StatusPlanning, StatusOpen, StatusCount1Open:
		return nil
	}
	return newRuleError(KindValidation, CodeStageNotOpen,
		"serials can only be registered before round 1 closes, inventory is %s", inv.Status)
}

// AcceptsSerialResolution allows resolving serial discrepancies in any
// state except cancelled. Resolution usually follows closure.
func (inv *Inventory) AcceptsSerialResolution() error {
	if inv.Status.Equals(StatusCancelled) {
		return newRuleError(KindState, CodeInventoryTerminal, "inventory %s is %s", inv.Code, inv.Status)
	}
	return nil
}

// AcceptsSerialMigration requires a closed inventory
func (inv *Inventory) AcceptsSerialMigration() error {
	if inv.Status.Equals(StatusCancelled) {
		return newRuleError(KindState, CodeInventoryTerminal, "inventory %s is %s", inv.Code, inv.Status)
	}
	if !inv.Status.Equals(StatusClosed) {
		return newRuleError(KindState, CodeNotClosed, "inventory %s is %s", inv.Code, inv.Status)
	}
	return nil
}

// AcceptsNotFoundFinalization allows classifying unscanned serials once the
// counting rounds are over
func (inv *Inventory) AcceptsNotFoundFinalization() error {
	switch inv.Status {
	case StatusAuditMode, StatusClosed:
		return nil
	}
	return newRuleError(KindState, CodeInvalidTransition,
		"unscanned serials are finalized once counting ends, inventory is %s", inv.Status).
		withDetail("currentStatus", inv.Status.String())
}

// MarkMigrated records a successful ERP push
func (inv *Inventory) MarkMigrated(actor string, linesPushed int) error {
	if err := inv.EnsureMigratable(); err != nil {
		return err
	}
	now := time.Now().UTC()
	inv.Migrated = true
	inv.MigratedAt = &now
	inv.MigratedBy = actor
	inv.UpdatedAt = now
	inv.AddDomainEvent(&InventoryMigratedEvent{
		InventoryID: inv.ID,
		Code:        inv.Code,
		LinesPushed: linesPushed,
		MigratedBy:  actor,
		MigratedAt:  now,
	})
	return nil
}

// EnsureMigratable is the precondition check for an ERP push
func (inv *Inventory) EnsureMigratable() error {
	if !inv.Status.Equals(StatusClosed) {
		return newRuleError(KindState, CodeNotClosed, "inventory %s is %s", inv.Code, inv.Status)
	}
	if inv.Migrated {
		return newRuleError(KindState, CodeAlreadyMigrated, "inventory %s already migrated", inv.Code)
	}
	return nil
}

// AddDomainEvent adds a domain event
func (inv *Inventory) AddDomainEvent(event DomainEvent) {
	inv.domainEvents = append(inv.domainEvents, event)
}

// ClearDomainEvents clears all domain events
func (inv *Inventory) ClearDomainEvents() {
	inv.domainEvents = nil
}

// GetDomainEvents returns all domain events
func (inv *Inventory) GetDomainEvents() []DomainEvent {
	return inv.domainEvents
}
