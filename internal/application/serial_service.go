package application

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/resilience"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

// SerialService reconciles serial-numbered assets against their expected locations
type SerialService struct {
	serviceBase
}

// NewSerialService creates a new SerialService
func NewSerialService(deps Dependencies) *SerialService {
	return &SerialService{serviceBase: newServiceBase(deps, "serial-service")}
}

// InitializeSerials registers the assets the stock records expect. Serials
// already registered for the inventory are skipped; a serial first seen as
// unexpected_found is promoted to expected.
func (s *SerialService) InitializeSerials(ctx context.Context, cmd InitializeSerialsCommand) (*SerialRegistrationDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "SerialService.InitializeSerials", func(ctx context.Context) (*SerialRegistrationDTO, error) {
		var res *SerialRegistrationDTO

		// a concurrent scan may insert the same serial first
		err := resilience.Retry(ctx, conflictRetry, func() error {
			res = &SerialRegistrationDTO{InventoryID: cmd.InventoryID}
			return s.locks.withLocks(ctx, "inventory", []string{inventoryLockKey(cmd.InventoryID)}, func(ctx context.Context) error {
				inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
				if err != nil {
					return err
				}
				if err := inv.AcceptsSerialRegistration(); err != nil {
					return err
				}

				existing, err := s.deps.Serials.FindByInventory(ctx, inv.ID, nil)
				if err != nil {
					return err
				}
				known := make(map[string]*domain.SerialItem, len(existing))
				for _, e := range existing {
					known[e.SerialNumber] = e
				}

				now := time.Now().UTC()
				seen := make(map[string]struct{}, len(cmd.Serials))
				var fresh, promoted []*domain.SerialItem
				for _, in := range cmd.Serials {
					sn := strings.TrimSpace(in.SerialNumber)
					if _, dup := seen[sn]; dup {
						res.Skipped++
						continue
					}
					if current, ok := known[sn]; ok {
						seen[sn] = struct{}{}
						if current.PromoteToExpected(in.ProductID, in.LocationID, now) {
							promoted = append(promoted, current)
						} else {
							res.Skipped++
						}
						continue
					}
					item, err := domain.NewExpectedSerial(inv.ID, sn, in.ProductID, in.LocationID)
					if err != nil {
						return err
					}
					seen[sn] = struct{}{}
					fresh = append(fresh, item)
				}
				if len(fresh) == 0 && len(promoted) == 0 {
					return nil
				}

				if err := s.persist(ctx, func(ctx context.Context) error {
					for _, serial := range promoted {
						if err := s.deps.Serials.Save(ctx, serial); err != nil {
							return err
						}
					}
					return s.deps.Serials.InsertMany(ctx, fresh)
				}); err != nil {
					return err
				}
				res.Registered = len(fresh)
				res.Promoted = len(promoted)
				return nil
			})
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Registered expected serials",
			"inventoryId", cmd.InventoryID,
			"registered", res.Registered,
			"promoted", res.Promoted,
			"skipped", res.Skipped,
		)
		return res, nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// RecordScan applies a serial reading taken during an open count round
func (s *SerialService) RecordScan(ctx context.Context, cmd RecordScanCommand) (*ScanResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "SerialService.RecordScan", func(ctx context.Context) (*ScanResultDTO, error) {
		stage, err := domain.ParseStage(cmd.Stage)
		if err != nil {
			return nil, err
		}
		serialNumber := strings.TrimSpace(cmd.SerialNumber)
		if serialNumber == "" {
			return nil, domain.ErrInvalidSerial
		}

		var (
			serial  *domain.SerialItem
			prior   string
			changed bool
		)
		keys := []string{serialLockKey(cmd.InventoryID, serialNumber)}
		err = resilience.Retry(ctx, conflictRetry, func() error {
			return s.locks.withLocks(ctx, "serial", keys, func(ctx context.Context) error {
				inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
				if err != nil {
					return err
				}
				if err := inv.AcceptsScan(stage); err != nil {
					return err
				}

				now := time.Now().UTC()
				created := false
				serial, err = s.deps.Serials.FindBySerial(ctx, inv.ID, serialNumber)
				switch {
				case err == nil:
					prior = serial.Discrepancy.String()
					if changed, err = serial.ApplyScan(stage, cmd.LocationID, cmd.ScannedBy, now); err != nil {
						return err
					}
				case stderrors.Is(err, domain.ErrSerialNotFound):
					serial, err = domain.NewUnexpectedSerial(inv.ID, serialNumber, cmd.ProductID, stage,
						cmd.LocationID, cmd.ScannedBy, now)
					if err != nil {
						return err
					}
					created, changed = true, true
				default:
					return err
				}
				if !changed {
					return nil
				}

				event := &domain.SerialScannedEvent{
					InventoryID:  inv.ID,
					SerialItemID: serial.ID,
					SerialNumber: serial.SerialNumber,
					Stage:        stage.Int(),
					LocationID:   cmd.LocationID,
					Discrepancy:  serial.Discrepancy.String(),
					ScannedBy:    cmd.ScannedBy,
					ScannedAt:    now,
				}
				return s.persist(ctx, func(ctx context.Context) error {
					if created {
						if err := s.deps.Serials.InsertMany(ctx, []*domain.SerialItem{serial}); err != nil {
							return err
						}
					} else if err := s.deps.Serials.Save(ctx, serial); err != nil {
						return err
					}
					return s.deps.Events.Append(ctx, event)
				})
			})
		})
		if err != nil {
			return nil, err
		}

		if changed {
			s.deps.Metrics.RecordSerialScan(serial.Discrepancy.String())

			entry := domain.NewAuditEntry(cmd.ScannedBy, domain.AuditActionScan, domain.EntitySerial, serial.ID)
			if prior != "" {
				entry.OldValue = map[string]any{"discrepancy": prior}
			}
			entry.NewValue = map[string]any{
				"stage":       stage.Int(),
				"locationId":  cmd.LocationID,
				"discrepancy": serial.Discrepancy.String(),
			}
			entry.Metadata = map[string]any{"inventoryId": cmd.InventoryID, "serialNumber": serialNumber}
			s.audit.record(ctx, entry)
		}

		s.logger.Info("Recorded serial scan",
			"inventoryId", cmd.InventoryID,
			"serialNumber", serialNumber,
			"stage", stage.Int(),
			"changed", changed,
			"discrepancy", serial.Discrepancy.String(),
		)
		return &ScanResultDTO{Serial: *ToSerialItemDTO(serial), Changed: changed}, nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// FinalizeNotFound classifies expected serials that were never scanned as
// not_found. It returns the number of records reclassified.
func (s *SerialService) FinalizeNotFound(ctx context.Context, inventoryID string) (int, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "SerialService.FinalizeNotFound", func(ctx context.Context) (int, error) {
		inv, err := s.deps.Inventories.FindByID(ctx, inventoryID)
		if err != nil {
			return 0, err
		}
		if err := inv.AcceptsNotFoundFinalization(); err != nil {
			return 0, err
		}

		pending := domain.ResolutionPending
		serials, err := s.deps.Serials.FindByInventory(ctx, inventoryID, &pending)
		if err != nil {
			return 0, err
		}

		marked := 0
		for _, batch := range chunk(serials, s.deps.BatchSize) {
			now := time.Now().UTC()
			var dirty []*domain.SerialItem
			for _, serial := range batch {
				if serial.MarkNotFound(now) {
					dirty = append(dirty, serial)
				}
			}
			if len(dirty) == 0 {
				continue
			}
			err := s.persist(ctx, func(ctx context.Context) error {
				for _, serial := range dirty {
					if err := s.deps.Serials.Save(ctx, serial); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return marked, err
			}
			marked += len(dirty)
		}

		if marked > 0 {
			s.logger.Info("Classified unscanned serials as not found", "inventoryId", inventoryID, "count", marked)
		}
		return marked, nil
	}, tracing.InventoryAttributes(inventoryID)...)
	if err != nil {
		return result, toAppError(err)
	}
	return result, nil
}

// Resolve closes a serial discrepancy with explanatory notes
func (s *SerialService) Resolve(ctx context.Context, cmd ResolveSerialCommand) (*SerialItemDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "SerialService.Resolve", func(ctx context.Context) (*SerialItemDTO, error) {
		serial, err := s.deps.Serials.FindByID(ctx, cmd.SerialItemID)
		if err != nil {
			return nil, err
		}

		keys := []string{serialLockKey(serial.InventoryID, serial.SerialNumber)}
		err = resilience.Retry(ctx, conflictRetry, func() error {
			return s.locks.withLocks(ctx, "serial", keys, func(ctx context.Context) error {
				if serial, err = s.deps.Serials.FindByID(ctx, cmd.SerialItemID); err != nil {
					return err
				}
				var inv *domain.Inventory
				if inv, err = s.deps.Inventories.FindByID(ctx, serial.InventoryID); err != nil {
					return err
				}
				if err := inv.AcceptsSerialResolution(); err != nil {
					return err
				}
				now := time.Now().UTC()
				if err := serial.Resolve(cmd.Notes, cmd.Resolver, now); err != nil {
					return err
				}
				return s.persist(ctx, func(ctx context.Context) error {
					if err := s.deps.Serials.Save(ctx, serial); err != nil {
						return err
					}
					return s.deps.Events.Append(ctx, serialResolvedEvent(serial, cmd.Resolver, now))
				})
			})
		})
		if err != nil {
			return nil, err
		}

		entry := domain.NewAuditEntry(cmd.Resolver, domain.AuditActionResolve, domain.EntitySerial, serial.ID)
		entry.OldValue = map[string]any{"resolution": domain.ResolutionPending.String()}
		entry.NewValue = map[string]any{
			"resolution": serial.Resolution.String(),
			"notes":      serial.ResolutionNotes,
		}
		entry.Metadata = map[string]any{"inventoryId": serial.InventoryID, "discrepancy": serial.Discrepancy.String()}
		s.audit.record(ctx, entry)

		s.logger.Info("Resolved serial discrepancy",
			"inventoryId", serial.InventoryID,
			"serialNumber", serial.SerialNumber,
			"discrepancy", serial.Discrepancy.String(),
		)
		return ToSerialItemDTO(serial), nil
	})
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// MigrateResolved moves every resolved serial of a closed inventory to
// migrated_to_erp. Each record is its own atomic unit.
func (s *SerialService) MigrateResolved(ctx context.Context, cmd MigrateSerialsCommand) (*SerialMigrationResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "SerialService.MigrateResolved", func(ctx context.Context) (*SerialMigrationResultDTO, error) {
		inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
		if err != nil {
			return nil, err
		}
		// closed is terminal, so the check holds for the whole batch
		if err := inv.AcceptsSerialMigration(); err != nil {
			return nil, err
		}
		resolved := domain.ResolutionResolved
		serials, err := s.deps.Serials.FindByInventory(ctx, cmd.InventoryID, &resolved)
		if err != nil {
			return nil, err
		}

		res := &SerialMigrationResultDTO{InventoryID: cmd.InventoryID}
		for i, batch := range chunk(serials, s.deps.BatchSize) {
			if err := ctx.Err(); err != nil {
				return res, batchInterrupted(err, map[string]int{
					"migrated": res.Migrated,
					"failed":   res.Failed,
				})
			}
			for _, candidate := range batch {
				if err := s.migrateOne(ctx, candidate.ID, cmd.Actor); err != nil {
					res.Failed++
					res.Failures = append(res.Failures, failureFromError(candidate.ID, err))
					continue
				}
				res.Migrated++
			}
			s.logger.Info("Serial migration batch processed",
				"inventoryId", cmd.InventoryID,
				"batch", i+1,
				"migrated", res.Migrated,
				"failed", res.Failed,
			)
		}

		if res.Migrated > 0 {
			entry := domain.NewAuditEntry(cmd.Actor, domain.AuditActionSerialMigration, domain.EntityInventory, cmd.InventoryID)
			entry.NewValue = map[string]any{"migrated": res.Migrated, "failed": res.Failed}
			s.audit.record(ctx, entry)
		}
		return res, nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	if err != nil {
		// result holds the partial progress of an interrupted batch
		return result, toAppError(err)
	}
	return result, nil
}

func (s *SerialService) migrateOne(ctx context.Context, serialItemID, actor string) error {
	serial, err := s.deps.Serials.FindByID(ctx, serialItemID)
	if err != nil {
		return err
	}
	keys := []string{serialLockKey(serial.InventoryID, serial.SerialNumber)}
	return s.locks.withLocks(ctx, "serial", keys, func(ctx context.Context) error {
		serial, err := s.deps.Serials.FindByID(ctx, serialItemID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := serial.MarkMigrated(now); err != nil {
			return err
		}
		return s.persist(ctx, func(ctx context.Context) error {
			if err := s.deps.Serials.Save(ctx, serial); err != nil {
				return err
			}
			return s.deps.Events.Append(ctx, serialResolvedEvent(serial, actor, now))
		})
	})
}

// Summary totals the inventory's serial records
func (s *SerialService) Summary(ctx context.Context, inventoryID string) (*SerialSummaryDTO, error) {
	if _, err := s.deps.Inventories.FindByID(ctx, inventoryID); err != nil {
		return nil, toAppError(err)
	}
	serials, err := s.deps.Serials.FindByInventory(ctx, inventoryID, nil)
	if err != nil {
		return nil, toAppError(err)
	}
	summary := ToSerialSummaryDTO(domain.SummarizeSerials(serials))
	return &summary, nil
}

// ListSerials returns the inventory's serial records, optionally by resolution
func (s *SerialService) ListSerials(ctx context.Context, query ListSerialsQuery) ([]SerialItemDTO, error) {
	var resolution *domain.Resolution
	if query.Resolution != "" {
		r, err := domain.NewResolution(query.Resolution)
		if err != nil {
			return nil, toAppError(err)
		}
		resolution = &r
	}
	if _, err := s.deps.Inventories.FindByID(ctx, query.InventoryID); err != nil {
		return nil, toAppError(err)
	}
	serials, err := s.deps.Serials.FindByInventory(ctx, query.InventoryID, resolution)
	if err != nil {
		return nil, toAppError(err)
	}
	dtos := make([]SerialItemDTO, 0, len(serials))
	for _, serial := range serials {
		dtos = append(dtos, *ToSerialItemDTO(serial))
	}
	return dtos, nil
}

func serialResolvedEvent(serial *domain.SerialItem, actor string, at time.Time) *domain.SerialResolvedEvent {
	return &domain.SerialResolvedEvent{
		InventoryID:  serial.InventoryID,
		SerialItemID: serial.ID,
		SerialNumber: serial.SerialNumber,
		Discrepancy:  serial.Discrepancy.String(),
		Resolution:   serial.Resolution.String(),
		Actor:        actor,
		ResolvedAt:   at,
	}
}
