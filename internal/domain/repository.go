package domain

import (
	"context"
	"errors"
	"time"
)

// InventoryFilter narrows inventory listings
type InventoryFilter struct {
	Status *InventoryStatus
	Type   *InventoryType
	Limit  int
	Offset int
}

// ItemFilter narrows item listings
type ItemFilter struct {
	Status         *ItemStatus
	Classification *Classification
	UnsettledOnly  bool
	LocationID     string
	Limit          int
	Offset         int
}

// InventoryRepository defines the interface for inventory persistence.
// Save is an optimistic update: it fails with ErrConcurrentModification when
// the stored version differs from inv.Version, and bumps Version on success.
type InventoryRepository interface {
	Create(ctx context.Context, inv *Inventory) error
	Save(ctx context.Context, inv *Inventory) error
	FindByID(ctx context.Context, id string) (*Inventory, error)
	FindByCode(ctx context.Context, code string) (*Inventory, error)
	List(ctx context.Context, filter InventoryFilter) ([]*Inventory, error)
	Delete(ctx context.Context, id string) error
}

// ItemRepository defines persistence for inventory items
type ItemRepository interface {
	InsertMany(ctx context.Context, items []*InventoryItem) error
	Save(ctx context.Context, item *InventoryItem) error
	FindByID(ctx context.Context, id string) (*InventoryItem, error)
	FindByInventory(ctx context.Context, inventoryID string, filter ItemFilter) ([]*InventoryItem, error)
	DeleteByInventory(ctx context.Context, inventoryID string) (int64, error)
}

// CountLedger is the append-only history of counts
type CountLedger interface {
	Append(ctx context.Context, count *Count) error
	// SupersedeStage flags every earlier entry of the stage for the item.
	SupersedeStage(ctx context.Context, itemID string, stage Stage) error
	ListByItem(ctx context.Context, itemID string) ([]*Count, error)
	DeleteByInventory(ctx context.Context, inventoryID string) (int64, error)
}

// SerialRepository defines persistence for serial items
type SerialRepository interface {
	InsertMany(ctx context.Context, items []*SerialItem) error
	Save(ctx context.Context, item *SerialItem) error
	FindByID(ctx context.Context, id string) (*SerialItem, error)
	FindBySerial(ctx context.Context, inventoryID, serialNumber string) (*SerialItem, error)
	FindByInventory(ctx context.Context, inventoryID string, resolution *Resolution) ([]*SerialItem, error)
	DeleteByInventory(ctx context.Context, inventoryID string) (int64, error)
}

// EventStore persists domain events for asynchronous publication.
// It must join the transaction carried by ctx.
type EventStore interface {
	Append(ctx context.Context, events ...DomainEvent) error
}

// Transactor runs fn atomically; repositories called with the ctx passed to
// fn participate in the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ErrLockNotAcquired is returned when a lock could not be taken in time
var ErrLockNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock
type Unlock func(ctx context.Context) error

// Locker provides mutual exclusion across service replicas
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// AuditRecorder writes entries to the audit log
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// ERPLine is one stock adjustment pushed to the ERP
type ERPLine struct {
	ProductCode   string `json:"productCode"`
	Quantity      int    `json:"quantity"`
	LocationID    string `json:"locationId"`
	InventoryCode string `json:"inventoryCode"`
}

// ERPResult is the ERP's verdict on a batch
type ERPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ERPClient pushes stock adjustments to the ERP
type ERPClient interface {
	PushAdjustments(ctx context.Context, lines []ERPLine) (ERPResult, error)
}
