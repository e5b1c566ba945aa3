package domain

import (
	"time"

	"github.com/google/uuid"
)

// CountValue is one recorded quantity together with who took it and when
type CountValue struct {
	Quantity  int       `bson:"quantity" json:"quantity"`
	CountedBy string    `bson:"countedBy" json:"countedBy"`
	CountedAt time.Time `bson:"countedAt" json:"countedAt"`
}

// InventoryItem is one product/location line under count
type InventoryItem struct {
	ID               string         `bson:"_id" json:"id"`
	InventoryID      string         `bson:"inventoryId" json:"inventoryId"`
	ProductID        string         `bson:"productId" json:"productId"`
	ProductCode      string         `bson:"productCode" json:"productCode"`
	CategoryID       string         `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	LocationID       string         `bson:"locationId" json:"locationId"`
	ExpectedQuantity *int           `bson:"expectedQuantity" json:"expectedQuantity"`
	Count1           *CountValue    `bson:"count1,omitempty" json:"count1,omitempty"`
	Count2           *CountValue    `bson:"count2,omitempty" json:"count2,omitempty"`
	Count3           *CountValue    `bson:"count3,omitempty" json:"count3,omitempty"`
	Count4           *CountValue    `bson:"count4,omitempty" json:"count4,omitempty"`
	FinalQuantity    *int           `bson:"finalQuantity" json:"finalQuantity"`
	Divergence       *int           `bson:"divergence" json:"divergence"`
	Classification   Classification `bson:"classification" json:"classification"`
	Status           ItemStatus     `bson:"status" json:"status"`
	Version          int64          `bson:"version" json:"version"`
	CreatedAt        time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// NewInventoryItem creates a pending item from a snapshot line
func NewInventoryItem(inventoryID string, line StockLine) *InventoryItem {
	now := time.Now().UTC()
	item := &InventoryItem{
		ID:               uuid.New().String(),
		InventoryID:      inventoryID,
		ProductID:        line.ProductID,
		ProductCode:      line.ProductCode,
		CategoryID:       line.CategoryID,
		LocationID:       line.LocationID,
		ExpectedQuantity: line.Quantity,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	item.Classification = ClassPendingCount
	item.Status = ItemPending
	return item
}

// CountFor returns the count recorded in the given stage, or nil
func (i *InventoryItem) CountFor(stage Stage) *CountValue {
	switch stage {
	case StageFirst:
		return i.Count1
	case StageSecond:
		return i.Count2
	case StageThird:
		return i.Count3
	case StageAudit:
		return i.Count4
	default:
		return nil
	}
}

func (i *InventoryItem) setCount(stage Stage, v *CountValue) {
	switch stage {
	case StageFirst:
		i.Count1 = v
	case StageSecond:
		i.Count2 = v
	case StageThird:
		i.Count3 = v
	case StageAudit:
		i.Count4 = v
	}
}

// Counts projects the recorded quantities for reconciliation
func (i *InventoryItem) Counts() CountSet {
	qty := func(v *CountValue) *int {
		if v == nil {
			return nil
		}
		q := v.Quantity
		return &q
	}
	return CountSet{
		Count1: qty(i.Count1),
		Count2: qty(i.Count2),
		Count3: qty(i.Count3),
		Count4: qty(i.Count4),
	}
}

// IsSettled reports whether the item has a final quantity
func (i *InventoryItem) IsSettled() bool {
	return i.FinalQuantity != nil
}

// HasAnyCount is true once any stage has been recorded
func (i *InventoryItem) HasAnyCount() bool {
	return i.Count1 != nil || i.Count2 != nil || i.Count3 != nil || i.Count4 != nil
}

// LatestRoundCount returns the most recent non-audit count (3, then 2, then 1)
func (i *InventoryItem) LatestRoundCount() *CountValue {
	switch {
	case i.Count3 != nil:
		return i.Count3
	case i.Count2 != nil:
		return i.Count2
	default:
		return i.Count1
	}
}

// ApplyCount records a quantity in a stage and re-runs reconciliation.
// Inventory-level gating (open stage, audit capability) is checked by
// Inventory.AcceptsCount before this is called.
func (i *InventoryItem) ApplyCount(stage Stage, quantity int, countedBy string, at time.Time) (Outcome, error) {
	if quantity < 0 {
		return Outcome{}, ErrNegativeQuantity
	}
	if i.ExpectedQuantity == nil {
		return Outcome{}, newRuleError(KindInconsistency, CodeMissingExpectedQuantity,
			"item %s has no expected quantity", i.ID)
	}
	if stage != StageAudit && i.CountFor(stage) != nil {
		return Outcome{}, newRuleError(KindValidation, CodeStageAlreadyCounted,
			"stage %d already counted for item %s", stage, i.ID)
	}
	if stage == StageThird && i.IsSettled() {
		return Outcome{}, newRuleError(KindValidation, CodeThirdCountNotRequired,
			"item %s is already settled as %s", i.ID, i.Classification)
	}

	i.setCount(stage, &CountValue{Quantity: quantity, CountedBy: countedBy, CountedAt: at})
	i.UpdatedAt = at
	return i.Recompute(), nil
}

// Recompute re-derives final quantity, divergence, classification and status
// from the stored counts. Running it twice without new counts changes nothing.
func (i *InventoryItem) Recompute() Outcome {
	if i.ExpectedQuantity == nil {
		return Outcome{Classification: i.Classification, Status: i.Status}
	}
	outcome := Reconcile(*i.ExpectedQuantity, i.Counts())
	i.FinalQuantity = outcome.FinalQuantity
	i.Divergence = outcome.Divergence
	i.Classification = outcome.Classification
	i.Status = outcome.Status
	return outcome
}

// Count is an immutable ledger entry
type Count struct {
	ID          string    `bson:"_id" json:"id"`
	InventoryID string    `bson:"inventoryId" json:"inventoryId"`
	ItemID      string    `bson:"itemId" json:"itemId"`
	Stage       Stage     `bson:"stage" json:"stage"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	CountedBy   string    `bson:"countedBy" json:"countedBy"`
	CountedAt   time.Time `bson:"countedAt" json:"countedAt"`
	Superseded  bool      `bson:"superseded" json:"superseded"`
}

// NewCount creates a ledger entry for a count applied to an item
func NewCount(item *InventoryItem, stage Stage, quantity int, countedBy string, at time.Time) *Count {
	return &Count{
		ID:          uuid.New().String(),
		InventoryID: item.InventoryID,
		ItemID:      item.ID,
		Stage:       stage,
		Quantity:    quantity,
		CountedBy:   countedBy,
		CountedAt:   at,
	}
}
