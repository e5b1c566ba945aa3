package application

import "time"

// StockLineInput is one row of the stock snapshot supplied at creation
type StockLineInput struct {
	ProductID   string
	ProductCode string
	CategoryID  string
	LocationID  string
	Quantity    *int
}

// CreateInventoryCommand creates an inventory in planning
type CreateInventoryCommand struct {
	Code                  string
	Description           string
	Type                  string
	LocationIDs           []string
	CategoryIDs           []string
	ProductIDs            []string
	BlocksSystemMovements bool
	PredictedEndDate      *time.Time
	Snapshot              []StockLineInput
	CreatedBy             string
}

// TransitionCommand identifies an inventory and the acting user
type TransitionCommand struct {
	InventoryID string
	Actor       string
	Role        string
}

// CountingRoundCommand starts or finishes a count round
type CountingRoundCommand struct {
	InventoryID string
	Round       int
	Actor       string
}

// CancelInventoryCommand cancels an inventory
type CancelInventoryCommand struct {
	InventoryID string
	Reason      string
	Actor       string
}

// RecordCountCommand records one count for an item
type RecordCountCommand struct {
	ItemID    string
	Stage     int
	Quantity  int
	CounterID string
	Role      string
}

// BulkConfirmCommand settles every remaining item of an inventory in audit mode
type BulkConfirmCommand struct {
	InventoryID string
	Actor       string
	Role        string
}

// ExpectedSerialInput is one asset the stock records expect
type ExpectedSerialInput struct {
	SerialNumber string
	ProductID    string
	LocationID   string
}

// InitializeSerialsCommand registers expected serials for an inventory
type InitializeSerialsCommand struct {
	InventoryID string
	Serials     []ExpectedSerialInput
	Actor       string
}

// RecordScanCommand records a serial reading
type RecordScanCommand struct {
	InventoryID  string
	SerialNumber string
	ProductID    string
	Stage        int
	LocationID   string
	ScannedBy    string
}

// ResolveSerialCommand resolves a serial discrepancy
type ResolveSerialCommand struct {
	SerialItemID string
	Notes        string
	Resolver     string
}

// MigrateSerialsCommand marks resolved serials as migrated
type MigrateSerialsCommand struct {
	InventoryID string
	Actor       string
}

// MigrateToERPCommand pushes final quantities of a closed inventory
type MigrateToERPCommand struct {
	InventoryID string
	Actor       string
}

// ListInventoriesQuery filters inventory listings
type ListInventoriesQuery struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

// ListItemsQuery filters item listings
type ListItemsQuery struct {
	InventoryID    string
	Status         string
	Classification string
	LocationID     string
	UnsettledOnly  bool
	Limit          int
	Offset         int
}

// ListSerialsQuery filters serial listings
type ListSerialsQuery struct {
	InventoryID string
	Resolution  string
}
