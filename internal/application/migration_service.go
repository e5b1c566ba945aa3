package application

import (
	"context"
	"time"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

const (
	erpStatusSuccess  = "success"
	erpStatusRejected = "rejected"
	erpStatusFailed   = "failed"
)

// MigrationConfig tunes the ERP push
type MigrationConfig struct {
	BatchSize int
	// LockTTL must cover every batch round trip; the inventory stays locked
	// for the whole push.
	LockTTL time.Duration
}

// MigrationService pushes the final quantities of closed inventories to the ERP
type MigrationService struct {
	serviceBase
	erp    domain.ERPClient
	config MigrationConfig
}

// NewMigrationService creates a new MigrationService
func NewMigrationService(deps Dependencies, erp domain.ERPClient, config MigrationConfig) *MigrationService {
	base := newServiceBase(deps, "migration-service")
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	return &MigrationService{serviceBase: base, erp: erp, config: config}
}

// MigrateToERP sends the signed delta of every settled item with a non-zero
// divergence. The inventory is marked migrated only when every batch is accepted.
func (s *MigrationService) MigrateToERP(ctx context.Context, cmd MigrateToERPCommand) (*ERPMigrationResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "MigrationService.MigrateToERP", func(ctx context.Context) (*ERPMigrationResultDTO, error) {
		var res *ERPMigrationResultDTO
		keys := []string{inventoryLockKey(cmd.InventoryID)}
		err := s.locks.withLocksFor(ctx, "inventory", keys, s.config.LockTTL, func(ctx context.Context) error {
			inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
			if err != nil {
				return err
			}
			if err := inv.EnsureMigratable(); err != nil {
				return err
			}

			items, err := s.deps.Items.FindByInventory(ctx, inv.ID, domain.ItemFilter{})
			if err != nil {
				return err
			}
			lines := adjustmentLines(inv, items)
			batches := chunk(lines, s.config.BatchSize)

			for i, batch := range batches {
				outcome, err := s.erp.PushAdjustments(ctx, batch)
				if err != nil {
					s.deps.Metrics.RecordERPMigration(erpStatusFailed)
					s.logger.WithError(err).Error("ERP push failed",
						"inventoryId", inv.ID, "batch", i+1, "batches", len(batches))
					return err
				}
				if !outcome.Success {
					s.deps.Metrics.RecordERPMigration(erpStatusRejected)
					return domain.NewERPError(domain.CodeERPRejected,
						"ERP rejected batch %d of %d: %s", i+1, len(batches), outcome.Message)
				}
			}

			if err := inv.MarkMigrated(cmd.Actor, len(lines)); err != nil {
				return err
			}
			events := inv.GetDomainEvents()
			err = s.persist(ctx, func(ctx context.Context) error {
				if err := s.deps.Inventories.Save(ctx, inv); err != nil {
					return err
				}
				return s.deps.Events.Append(ctx, events...)
			})
			if err != nil {
				return err
			}
			inv.ClearDomainEvents()

			res = &ERPMigrationResultDTO{
				InventoryID: inv.ID,
				LinesPushed: len(lines),
				Batches:     len(batches),
				MigratedAt:  inv.MigratedAt,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.deps.Metrics.RecordERPMigration(erpStatusSuccess)

		entry := domain.NewAuditEntry(cmd.Actor, domain.AuditActionERPMigration, domain.EntityInventory, res.InventoryID)
		entry.OldValue = map[string]any{"migrated": false}
		entry.NewValue = map[string]any{"migrated": true, "linesPushed": res.LinesPushed, "batches": res.Batches}
		s.audit.record(ctx, entry)

		s.logger.Info("Migrated inventory to ERP",
			"inventoryId", res.InventoryID,
			"linesPushed", res.LinesPushed,
			"batches", res.Batches,
		)
		return res, nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

func adjustmentLines(inv *domain.Inventory, items []*domain.InventoryItem) []domain.ERPLine {
	var lines []domain.ERPLine
	for _, item := range items {
		if !item.IsSettled() || item.Divergence == nil || *item.Divergence == 0 {
			continue
		}
		lines = append(lines, domain.ERPLine{
			ProductCode:   item.ProductCode,
			Quantity:      *item.Divergence,
			LocationID:    item.LocationID,
			InventoryCode: inv.Code,
		})
	}
	return lines
}
