package application

import (
	"context"
	stderrors "errors"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/resilience"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

// LifecycleService drives inventories through their state machine
type LifecycleService struct {
	serviceBase
	serials *SerialService
}

// NewLifecycleService creates a new LifecycleService. serials is notified
// when an inventory enters audit mode.
func NewLifecycleService(deps Dependencies, serials *SerialService) *LifecycleService {
	return &LifecycleService{
		serviceBase: newServiceBase(deps, "lifecycle-service"),
		serials:     serials,
	}
}

// CreateInventory creates an inventory in planning with its items generated
// from the supplied stock snapshot
func (s *LifecycleService) CreateInventory(ctx context.Context, cmd CreateInventoryCommand) (*InventoryDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "LifecycleService.CreateInventory", func(ctx context.Context) (*InventoryDTO, error) {
		invType, err := domain.NewInventoryType(cmd.Type)
		if err != nil {
			return nil, err
		}

		inv, err := domain.NewInventory(domain.NewInventoryParams{
			Code:        cmd.Code,
			Description: cmd.Description,
			Type:        invType,
			Criteria: domain.Criteria{
				LocationIDs: cmd.LocationIDs,
				CategoryIDs: cmd.CategoryIDs,
				ProductIDs:  cmd.ProductIDs,
			},
			BlocksSystemMovements: cmd.BlocksSystemMovements,
			PredictedEndDate:      cmd.PredictedEndDate,
			CreatedBy:             cmd.CreatedBy,
		})
		if err != nil {
			return nil, err
		}

		existing, err := s.deps.Inventories.FindByCode(ctx, inv.Code)
		switch {
		case err == nil && existing != nil:
			return nil, domain.ErrDuplicateCode
		case err != nil && !stderrors.Is(err, domain.ErrInventoryNotFound):
			return nil, err
		}

		items := inv.Plan(toStockLines(cmd.Snapshot))
		events := inv.GetDomainEvents()

		err = s.persist(ctx, func(ctx context.Context) error {
			if err := s.deps.Inventories.Create(ctx, inv); err != nil {
				return err
			}
			if len(items) > 0 {
				if err := s.deps.Items.InsertMany(ctx, items); err != nil {
					return err
				}
			}
			return s.deps.Events.Append(ctx, events...)
		})
		if err != nil {
			return nil, err
		}
		inv.ClearDomainEvents()

		entry := domain.NewAuditEntry(cmd.CreatedBy, domain.AuditActionCreate, domain.EntityInventory, inv.ID)
		entry.NewValue = map[string]any{"code": inv.Code, "type": inv.Type.String(), "items": len(items)}
		s.audit.record(ctx, entry)

		s.logger.Info("Created inventory", "inventoryId", inv.ID, "code", inv.Code, "items", len(items))

		dto := ToInventoryDTO(inv)
		itemCount := len(items)
		dto.ItemCount = &itemCount
		return dto, nil
	})
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// OpenInventory moves planning to open
func (s *LifecycleService) OpenInventory(ctx context.Context, cmd TransitionCommand) (*TransitionResultDTO, error) {
	return s.transition(ctx, "LifecycleService.OpenInventory", cmd.InventoryID, cmd.Actor,
		func(_ context.Context, inv *domain.Inventory) ([]domain.Transition, error) {
			t, err := inv.Open(cmd.Actor)
			if err != nil {
				return nil, err
			}
			return []domain.Transition{t}, nil
		})
}

// StartCounting opens count round 1, 2 or 3
func (s *LifecycleService) StartCounting(ctx context.Context, cmd CountingRoundCommand) (*TransitionResultDTO, error) {
	return s.transition(ctx, "LifecycleService.StartCounting", cmd.InventoryID, cmd.Actor,
		func(_ context.Context, inv *domain.Inventory) ([]domain.Transition, error) {
			round, err := parseRound(cmd.Round)
			if err != nil {
				return nil, err
			}
			t, err := inv.StartCounting(round, cmd.Actor)
			if err != nil {
				return nil, err
			}
			return []domain.Transition{t}, nil
		})
}

// FinishCounting closes a count round and, after rounds 2 and 3, advances
// the inventory according to the aggregate reconciliation outcome
func (s *LifecycleService) FinishCounting(ctx context.Context, cmd CountingRoundCommand) (*TransitionResultDTO, error) {
	result, err := s.transition(ctx, "LifecycleService.FinishCounting", cmd.InventoryID, cmd.Actor,
		func(ctx context.Context, inv *domain.Inventory) ([]domain.Transition, error) {
			round, err := parseRound(cmd.Round)
			if err != nil {
				return nil, err
			}
			var report domain.ClosureReport
			if round == domain.StageSecond {
				if report, err = s.closureReport(ctx, inv.ID); err != nil {
					return nil, err
				}
			}
			return inv.FinishCounting(round, report, cmd.Actor)
		})
	if err != nil {
		return nil, err
	}

	if result.Inventory.Status == domain.StatusAuditMode.String() && s.serials != nil {
		if _, err := s.serials.FinalizeNotFound(ctx, cmd.InventoryID); err != nil {
			s.logger.WithError(err).Warn("Failed to finalize not-found serials; it is retried on close or via POST /serials/finalize",
				"inventoryId", cmd.InventoryID)
		}
	}
	return result, nil
}

// CloseInventory moves audit_mode to closed when every item is settled.
// Unscanned serials are classified first, so a closed inventory never holds
// expected serials without a verdict.
func (s *LifecycleService) CloseInventory(ctx context.Context, cmd TransitionCommand) (*TransitionResultDTO, error) {
	auditAccess := s.deps.Policy.HasAuditAccess(cmd.Role)
	return s.transition(ctx, "LifecycleService.CloseInventory", cmd.InventoryID, cmd.Actor,
		func(ctx context.Context, inv *domain.Inventory) ([]domain.Transition, error) {
			if auditAccess && inv.Status.Equals(domain.StatusAuditMode) && s.serials != nil {
				if _, err := s.serials.FinalizeNotFound(ctx, inv.ID); err != nil {
					return nil, err
				}
			}
			report, err := s.closureReport(ctx, inv.ID)
			if err != nil {
				return nil, err
			}
			t, err := inv.Close(report, auditAccess, cmd.Actor)
			if err != nil {
				return nil, err
			}
			return []domain.Transition{t}, nil
		})
}

// CancelInventory abandons a non-terminal inventory
func (s *LifecycleService) CancelInventory(ctx context.Context, cmd CancelInventoryCommand) (*TransitionResultDTO, error) {
	return s.transition(ctx, "LifecycleService.CancelInventory", cmd.InventoryID, cmd.Actor,
		func(_ context.Context, inv *domain.Inventory) ([]domain.Transition, error) {
			t, err := inv.Cancel(cmd.Reason, cmd.Actor)
			if err != nil {
				return nil, err
			}
			return []domain.Transition{t}, nil
		})
}

// DeleteInventory removes a cancelled inventory with its items, counts and serials
func (s *LifecycleService) DeleteInventory(ctx context.Context, cmd TransitionCommand) error {
	err := tracing.TracedVoidOperation(ctx, s.tracer, "LifecycleService.DeleteInventory", func(ctx context.Context) error {
		var code string
		err := s.locks.withLocks(ctx, "inventory", []string{inventoryLockKey(cmd.InventoryID)}, func(ctx context.Context) error {
			inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
			if err != nil {
				return err
			}
			if err := inv.EnsureDeletable(); err != nil {
				return err
			}
			code = inv.Code

			return s.persist(ctx, func(ctx context.Context) error {
				if _, err := s.deps.Counts.DeleteByInventory(ctx, inv.ID); err != nil {
					return err
				}
				if _, err := s.deps.Items.DeleteByInventory(ctx, inv.ID); err != nil {
					return err
				}
				if _, err := s.deps.Serials.DeleteByInventory(ctx, inv.ID); err != nil {
					return err
				}
				return s.deps.Inventories.Delete(ctx, inv.ID)
			})
		})
		if err != nil {
			return err
		}

		entry := domain.NewAuditEntry(cmd.Actor, domain.AuditActionDelete, domain.EntityInventory, cmd.InventoryID)
		entry.OldValue = map[string]any{"code": code, "status": domain.StatusCancelled.String()}
		s.audit.record(ctx, entry)

		s.logger.Info("Deleted inventory", "inventoryId", cmd.InventoryID, "code", code)
		return nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	return toAppError(err)
}

// CanClose reports whether the inventory may be closed now
func (s *LifecycleService) CanClose(ctx context.Context, inventoryID string) (*ClosureReportDTO, error) {
	if _, err := s.deps.Inventories.FindByID(ctx, inventoryID); err != nil {
		return nil, toAppError(err)
	}
	report, err := s.closureReport(ctx, inventoryID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToClosureReportDTO(inventoryID, report), nil
}

func (s *LifecycleService) closureReport(ctx context.Context, inventoryID string) (domain.ClosureReport, error) {
	items, err := s.deps.Items.FindByInventory(ctx, inventoryID, domain.ItemFilter{})
	if err != nil {
		return domain.ClosureReport{}, err
	}
	return domain.EvaluateClosure(items), nil
}

type transitionFunc func(ctx context.Context, inv *domain.Inventory) ([]domain.Transition, error)

// transition applies a lifecycle move under the inventory lock and persists
// the new status with its events atomically
func (s *LifecycleService) transition(ctx context.Context, spanName, inventoryID, actor string, apply transitionFunc) (*TransitionResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, spanName, func(ctx context.Context) (*TransitionResultDTO, error) {
		var (
			inv     *domain.Inventory
			applied []domain.Transition
		)
		err := resilience.Retry(ctx, conflictRetry, func() error {
			return s.locks.withLocks(ctx, "inventory", []string{inventoryLockKey(inventoryID)}, func(ctx context.Context) error {
				var err error
				if inv, err = s.deps.Inventories.FindByID(ctx, inventoryID); err != nil {
					return err
				}
				if applied, err = apply(ctx, inv); err != nil {
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
				return nil
			})
		})
		if err != nil {
			return nil, err
		}

		for _, t := range applied {
			s.deps.Metrics.RecordTransition(t.From.String(), t.To.String())

			entry := domain.NewAuditEntry(actor, domain.AuditActionStatusChange, domain.EntityInventory, inv.ID)
			entry.OldValue = t.From.String()
			entry.NewValue = t.To.String()
			if t.Reason != "" {
				entry.Metadata = map[string]any{"reason": t.Reason}
			}
			s.audit.record(ctx, entry)

			s.logger.Info("Inventory status changed",
				"inventoryId", inv.ID,
				"from", t.From.String(),
				"to", t.To.String(),
				"actor", actor,
			)
		}

		return &TransitionResultDTO{
			Inventory:   *ToInventoryDTO(inv),
			Transitions: ToTransitionDTOs(applied),
		}, nil
	}, tracing.InventoryAttributes(inventoryID)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

func parseRound(n int) (domain.Stage, error) {
	round, err := domain.ParseStage(n)
	if err != nil || round == domain.StageAudit {
		return 0, domain.ErrInvalidStage
	}
	return round, nil
}
