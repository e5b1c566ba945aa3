package handlers

import (
	"context"

	"github.com/wms-platform/stockcount-service/internal/application"
)

// LifecycleService drives the inventory state machine
type LifecycleService interface {
	CreateInventory(ctx context.Context, cmd application.CreateInventoryCommand) (*application.InventoryDTO, error)
	OpenInventory(ctx context.Context, cmd application.TransitionCommand) (*application.TransitionResultDTO, error)
	StartCounting(ctx context.Context, cmd application.CountingRoundCommand) (*application.TransitionResultDTO, error)
	FinishCounting(ctx context.Context, cmd application.CountingRoundCommand) (*application.TransitionResultDTO, error)
	CloseInventory(ctx context.Context, cmd application.TransitionCommand) (*application.TransitionResultDTO, error)
	CancelInventory(ctx context.Context, cmd application.CancelInventoryCommand) (*application.TransitionResultDTO, error)
	DeleteInventory(ctx context.Context, cmd application.TransitionCommand) error
	CanClose(ctx context.Context, inventoryID string) (*application.ClosureReportDTO, error)
}

// CountService records counts against items
type CountService interface {
	RecordCount(ctx context.Context, cmd application.RecordCountCommand) (*application.CountResultDTO, error)
	ListCounts(ctx context.Context, itemID string) ([]application.CountDTO, error)
	BulkConfirm(ctx context.Context, cmd application.BulkConfirmCommand) (*application.BulkConfirmResultDTO, error)
}

// SerialService reconciles serial-tracked assets
type SerialService interface {
	InitializeSerials(ctx context.Context, cmd application.InitializeSerialsCommand) (*application.SerialRegistrationDTO, error)
	RecordScan(ctx context.Context, cmd application.RecordScanCommand) (*application.ScanResultDTO, error)
	FinalizeNotFound(ctx context.Context, inventoryID string) (int, error)
	Resolve(ctx context.Context, cmd application.ResolveSerialCommand) (*application.SerialItemDTO, error)
	MigrateResolved(ctx context.Context, cmd application.MigrateSerialsCommand) (*application.SerialMigrationResultDTO, error)
	Summary(ctx context.Context, inventoryID string) (*application.SerialSummaryDTO, error)
	ListSerials(ctx context.Context, query application.ListSerialsQuery) ([]application.SerialItemDTO, error)
}

// MigrationService pushes closed inventories to the ERP
type MigrationService interface {
	MigrateToERP(ctx context.Context, cmd application.MigrateToERPCommand) (*application.ERPMigrationResultDTO, error)
}

// QueryService serves the read side
type QueryService interface {
	GetInventory(ctx context.Context, inventoryID string) (*application.InventoryDTO, error)
	ListInventories(ctx context.Context, query application.ListInventoriesQuery) ([]application.InventoryDTO, error)
	GetItem(ctx context.Context, itemID string) (*application.ItemDTO, error)
	ListItems(ctx context.Context, query application.ListItemsQuery) ([]application.ItemDTO, error)
	Dashboard(ctx context.Context, inventoryID string) (*application.DashboardDTO, error)
}

var (
	_ LifecycleService = (*application.LifecycleService)(nil)
	_ CountService     = (*application.CountService)(nil)
	_ SerialService    = (*application.SerialService)(nil)
	_ MigrationService = (*application.MigrationService)(nil)
	_ QueryService     = (*application.QueryService)(nil)
)
