package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryDTO represents an inventory in responses
type InventoryDTO struct {
	ID                    string     `json:"id"`
	Code                  string     `json:"code"`
	Description           string     `json:"description,omitempty"`
	Type                  string     `json:"type"`
	Status                string     `json:"status"`
	LocationIDs           []string   `json:"locationIds,omitempty"`
	CategoryIDs           []string   `json:"categoryIds,omitempty"`
	ProductIDs            []string   `json:"productIds,omitempty"`
	BlocksSystemMovements bool       `json:"blocksSystemMovements"`
	StartDate             *time.Time `json:"startDate,omitempty"`
	EndDate               *time.Time `json:"endDate,omitempty"`
	PredictedEndDate      *time.Time `json:"predictedEndDate,omitempty"`
	CreatedBy             string     `json:"createdBy"`
	CancelReason          string     `json:"cancelReason,omitempty"`
	Migrated              bool       `json:"migrated"`
	MigratedAt            *time.Time `json:"migratedAt,omitempty"`
	MigratedBy            string     `json:"migratedBy,omitempty"`
	ItemCount             *int       `json:"itemCount,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// CountValueDTO is a recorded count on an item
type CountValueDTO struct {
	Quantity  int       `json:"quantity"`
	CountedBy string    `json:"countedBy"`
	CountedAt time.Time `json:"countedAt"`
}

// ItemDTO represents an inventory item in responses
type ItemDTO struct {
	ID               string         `json:"id"`
	InventoryID      string         `json:"inventoryId"`
	ProductID        string         `json:"productId"`
	ProductCode      string         `json:"productCode"`
	CategoryID       string         `json:"categoryId,omitempty"`
	LocationID       string         `json:"locationId"`
	ExpectedQuantity *int           `json:"expectedQuantity"`
	Count1           *CountValueDTO `json:"count1,omitempty"`
	Count2           *CountValueDTO `json:"count2,omitempty"`
	Count3           *CountValueDTO `json:"count3,omitempty"`
	Count4           *CountValueDTO `json:"count4,omitempty"`
	FinalQuantity    *int           `json:"finalQuantity"`
	Divergence       *int           `json:"divergence"`
	Classification   string         `json:"classification"`
	Status           string         `json:"status"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// CountDTO is a ledger entry
type CountDTO struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	Stage      int       `json:"stage"`
	Quantity   int       `json:"quantity"`
	CountedBy  string    `json:"countedBy"`
	CountedAt  time.Time `json:"countedAt"`
	Superseded bool      `json:"superseded"`
}

// CountResultDTO is returned after a count is recorded
type CountResultDTO struct {
	Count CountDTO `json:"count"`
	Item  ItemDTO  `json:"item"`
}

// TransitionDTO describes one applied lifecycle move
type TransitionDTO struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// TransitionResultDTO is returned by lifecycle operations
type TransitionResultDTO struct {
	Inventory   InventoryDTO    `json:"inventory"`
	Transitions []TransitionDTO `json:"transitions"`
}

// ClosureReportDTO is the closure dry-run result
type ClosureReportDTO struct {
	InventoryID      string   `json:"inventoryId"`
	Allowed          bool     `json:"allowed"`
	UnsettledCount   int      `json:"unsettledCount"`
	TotalItems       int      `json:"totalItems"`
	UnsettledItemIDs []string `json:"unsettledItemIds,omitempty"`
}

// ItemFailureDTO reports why a per-item batch step failed
type ItemFailureDTO struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkConfirmResultDTO summarizes a bulk audit confirmation
type BulkConfirmResultDTO struct {
	InventoryID string           `json:"inventoryId"`
	Confirmed   int              `json:"confirmed"`
	Skipped     int              `json:"skipped"`
	Failed      int              `json:"failed"`
	Failures    []ItemFailureDTO `json:"failures,omitempty"`
}

// SerialItemDTO represents a serial item in responses
type SerialItemDTO struct {
	ID                 string     `json:"id"`
	InventoryID        string     `json:"inventoryId"`
	SerialNumber       string     `json:"serialNumber"`
	ProductID          string     `json:"productId"`
	Expected           bool       `json:"expected"`
	ExpectedLocationID string     `json:"expectedLocationId,omitempty"`
	FoundLocationID    string     `json:"foundLocationId,omitempty"`
	FoundStage         int        `json:"foundStage,omitempty"`
	ScannedBy          string     `json:"scannedBy,omitempty"`
	ScannedAt          *time.Time `json:"scannedAt,omitempty"`
	Discrepancy        string     `json:"discrepancy"`
	Resolution         string     `json:"resolution"`
	ResolutionNotes    string     `json:"resolutionNotes,omitempty"`
	ResolvedBy         string     `json:"resolvedBy,omitempty"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
	MigratedAt         *time.Time `json:"migratedAt,omitempty"`
}

// ScanResultDTO is returned after a serial reading
type ScanResultDTO struct {
	Serial  SerialItemDTO `json:"serial"`
	Changed bool          `json:"changed"`
}

// SerialRegistrationDTO summarizes serial initialization
type SerialRegistrationDTO struct {
	InventoryID string `json:"inventoryId"`
	Registered  int    `json:"registered"`
	Promoted    int    `json:"promoted"`
	Skipped     int    `json:"skipped"`
}

// SerialMigrationResultDTO summarizes a serial migration batch
type SerialMigrationResultDTO struct {
	InventoryID string           `json:"inventoryId"`
	Migrated    int              `json:"migrated"`
	Failed      int              `json:"failed"`
	Failures    []ItemFailureDTO `json:"failures,omitempty"`
}

// SerialSummaryDTO totals serial records by discrepancy and resolution
type SerialSummaryDTO struct {
	Total             int            `json:"total"`
	Found             int            `json:"found"`
	Expected          int            `json:"expected"`
	OpenDiscrepancies int            `json:"openDiscrepancies"`
	ByDiscrepancy     map[string]int `json:"byDiscrepancy"`
	ByResolution      map[string]int `json:"byResolution"`
}

// ERPMigrationResultDTO is returned after a successful ERP push
type ERPMigrationResultDTO struct {
	InventoryID string     `json:"inventoryId"`
	LinesPushed int        `json:"linesPushed"`
	Batches     int        `json:"batches"`
	MigratedAt  *time.Time `json:"migratedAt"`
}

// DivergenceTotalsDTO sums signed differences over settled items
type DivergenceTotalsDTO struct {
	PositiveUnits  int `json:"positiveUnits"`
	NegativeUnits  int `json:"negativeUnits"`
	NetUnits       int `json:"netUnits"`
	DivergentItems int `json:"divergentItems"`
}

// DashboardDTO is the progress and accuracy view of an inventory
type DashboardDTO struct {
	InventoryID     string              `json:"inventoryId"`
	Code            string              `json:"code"`
	Status          string              `json:"status"`
	TotalItems      int                 `json:"totalItems"`
	CountedItems    int                 `json:"countedItems"`
	SettledItems    int                 `json:"settledItems"`
	CountProgress   decimal.Decimal     `json:"countProgress"`
	SettledProgress decimal.Decimal     `json:"settledProgress"`
	Accuracy        decimal.Decimal     `json:"accuracy"`
	Divergence      DivergenceTotalsDTO `json:"divergence"`
	Classifications map[string]int      `json:"classifications"`
	Serials         SerialSummaryDTO    `json:"serials"`
}
