package domain

import "time"

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the inventory the event belongs to; it keys event ordering.
	AggregateID() string
	// Subject is the entity the event is about.
	Subject() string
}

// InventoryCreatedEvent is emitted when an inventory enters planning
type InventoryCreatedEvent struct {
	InventoryID string    `json:"inventoryId"`
	Code        string    `json:"code"`
	Type        string    `json:"type"`
	ItemCount   int       `json:"itemCount"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *InventoryCreatedEvent) EventType() string {
	return "wms.stockcount.inventory-created"
}

func (e *InventoryCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }
func (e *InventoryCreatedEvent) AggregateID() string   { return e.InventoryID }
func (e *InventoryCreatedEvent) Subject() string       { return e.InventoryID }

// InventoryStatusChangedEvent is emitted for every lifecycle transition
type InventoryStatusChangedEvent struct {
	InventoryID string    `json:"inventoryId"`
	Code        string    `json:"code"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Actor       string    `json:"actor"`
	Reason      string    `json:"reason,omitempty"`
	ChangedAt   time.Time `json:"changedAt"`
}

func (e *InventoryStatusChangedEvent) EventType() string {
	switch e.To {
	case statusClosed:
		return "wms.stockcount.inventory-closed"
	case statusCancelled:
		return "wms.stockcount.inventory-cancelled"
	default:
		return "wms.stockcount.inventory-status-changed"
	}
}

func (e *InventoryStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *InventoryStatusChangedEvent) AggregateID() string   { return e.InventoryID }
func (e *InventoryStatusChangedEvent) Subject() string       { return e.InventoryID }

// InventoryMigratedEvent is emitted after all ERP batches succeeded
type InventoryMigratedEvent struct {
	InventoryID string    `json:"inventoryId"`
	Code        string    `json:"code"`
	LinesPushed int       `json:"linesPushed"`
	MigratedBy  string    `json:"migratedBy"`
	MigratedAt  time.Time `json:"migratedAt"`
}

func (e *InventoryMigratedEvent) EventType() string {
	return "wms.stockcount.inventory-migrated"
}

func (e *InventoryMigratedEvent) OccurredAt() time.Time { return e.MigratedAt }
func (e *InventoryMigratedEvent) AggregateID() string   { return e.InventoryID }
func (e *InventoryMigratedEvent) Subject() string       { return e.InventoryID }

// ItemCountedEvent is emitted for every accepted count
type ItemCountedEvent struct {
	InventoryID    string    `json:"inventoryId"`
	ItemID         string    `json:"itemId"`
	ProductCode    string    `json:"productCode"`
	LocationID     string    `json:"locationId"`
	Stage          int       `json:"stage"`
	Quantity       int       `json:"quantity"`
	CountedBy      string    `json:"countedBy"`
	Classification string    `json:"classification"`
	CountedAt      time.Time `json:"countedAt"`
}

func (e *ItemCountedEvent) EventType() string {
	return "wms.stockcount.item-counted"
}

func (e *ItemCountedEvent) OccurredAt() time.Time { return e.CountedAt }
func (e *ItemCountedEvent) AggregateID() string   { return e.InventoryID }
func (e *ItemCountedEvent) Subject() string       { return e.ItemID }

// ItemSettledEvent is emitted when a count gives an item its final quantity
type ItemSettledEvent struct {
	InventoryID    string    `json:"inventoryId"`
	ItemID         string    `json:"itemId"`
	ProductCode    string    `json:"productCode"`
	LocationID     string    `json:"locationId"`
	FinalQuantity  int       `json:"finalQuantity"`
	Divergence     int       `json:"divergence"`
	Classification string    `json:"classification"`
	SettledAt      time.Time `json:"settledAt"`
}

func (e *ItemSettledEvent) EventType() string {
	return "wms.stockcount.item-settled"
}

func (e *ItemSettledEvent) OccurredAt() time.Time { return e.SettledAt }
func (e *ItemSettledEvent) AggregateID() string   { return e.InventoryID }
func (e *ItemSettledEvent) Subject() string       { return e.ItemID }

// SerialScannedEvent is emitted when a scan changes a serial record
type SerialScannedEvent struct {
	InventoryID  string    `json:"inventoryId"`
	SerialItemID string    `json:"serialItemId"`
	SerialNumber string    `json:"serialNumber"`
	Stage        int       `json:"stage"`
	LocationID   string    `json:"locationId"`
	Discrepancy  string    `json:"discrepancy"`
	ScannedBy    string    `json:"scannedBy"`
	ScannedAt    time.Time `json:"scannedAt"`
}

func (e *SerialScannedEvent) EventType() string {
	return "wms.stockcount.serial-scanned"
}

func (e *SerialScannedEvent) OccurredAt() time.Time { return e.ScannedAt }
func (e *SerialScannedEvent) AggregateID() string   { return e.InventoryID }
func (e *SerialScannedEvent) Subject() string       { return e.SerialNumber }

// SerialResolvedEvent is emitted when a discrepancy is resolved or migrated
type SerialResolvedEvent struct {
	InventoryID  string    `json:"inventoryId"`
	SerialItemID string    `json:"serialItemId"`
	SerialNumber string    `json:"serialNumber"`
	Discrepancy  string    `json:"discrepancy"`
	Resolution   string    `json:"resolution"`
	Actor        string    `json:"actor"`
	ResolvedAt   time.Time `json:"resolvedAt"`
}

func (e *SerialResolvedEvent) EventType() string {
	return "wms.stockcount.serial-resolved"
}

func (e *SerialResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }
func (e *SerialResolvedEvent) AggregateID() string   { return e.InventoryID }
func (e *SerialResolvedEvent) Subject() string       { return e.SerialNumber }

// NewItemCountedEvent builds the event for an accepted count
func NewItemCountedEvent(item *InventoryItem, stage Stage, quantity int, countedBy string, at time.Time) *ItemCountedEvent {
	return &ItemCountedEvent{
		InventoryID:    item.InventoryID,
		ItemID:         item.ID,
		ProductCode:    item.ProductCode,
		LocationID:     item.LocationID,
		Stage:          stage.Int(),
		Quantity:       quantity,
		CountedBy:      countedBy,
		Classification: item.Classification.String(),
		CountedAt:      at,
	}
}

// NewItemSettledEvent builds the event for a settled item; nil if unsettled
func NewItemSettledEvent(item *InventoryItem, at time.Time) *ItemSettledEvent {
	if !item.IsSettled() {
		return nil
	}
	divergence := 0
	if item.Divergence != nil {
		divergence = *item.Divergence
	}
	return &ItemSettledEvent{
		InventoryID:    item.InventoryID,
		ItemID:         item.ID,
		ProductCode:    item.ProductCode,
		LocationID:     item.LocationID,
		FinalQuantity:  *item.FinalQuantity,
		Divergence:     divergence,
		Classification: item.Classification.String(),
		SettledAt:      at,
	}
}
