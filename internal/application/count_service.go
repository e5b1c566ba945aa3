package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/resilience"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

// errSkipItem marks a bulk-confirm candidate that has nothing to confirm
var errSkipItem = stderrors.New("item skipped")

// CountService owns the count ledger: every count write goes through it
type CountService struct {
	serviceBase
}

// NewCountService creates a new CountService
func NewCountService(deps Dependencies) *CountService {
	return &CountService{serviceBase: newServiceBase(deps, "count-service")}
}

// quantityFunc picks the quantity to record once the item is loaded under lock
type quantityFunc func(item *domain.InventoryItem) (int, error)

// RecordCount validates and applies one count, then re-runs reconciliation
func (s *CountService) RecordCount(ctx context.Context, cmd RecordCountCommand) (*CountResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "CountService.RecordCount", func(ctx context.Context) (*CountResultDTO, error) {
		stage, err := domain.ParseStage(cmd.Stage)
		if err != nil {
			return nil, err
		}
		if cmd.Quantity < 0 {
			return nil, domain.ErrNegativeQuantity
		}

		item, err := s.deps.Items.FindByID(ctx, cmd.ItemID)
		if err != nil {
			return nil, err
		}

		auditAccess := s.deps.Policy.HasAuditAccess(cmd.Role)
		return s.record(ctx, item.InventoryID, item.ID, stage, cmd.CounterID, auditAccess,
			func(*domain.InventoryItem) (int, error) { return cmd.Quantity, nil })
	}, tracing.ItemAttributes(cmd.ItemID, cmd.Stage)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// record is the single write path for counts. It serializes on the
// inventory and the item, re-reads both under lock, and persists the item
// together with its ledger entry and events.
func (s *CountService) record(
	ctx context.Context,
	inventoryID, itemID string,
	stage domain.Stage,
	actor string,
	auditAccess bool,
	pick quantityFunc,
) (*CountResultDTO, error) {
	var (
		result   *CountResultDTO
		prior    map[string]any
		settled  bool
		outcome  domain.Outcome
		quantity int
	)

	keys := []string{inventoryLockKey(inventoryID), itemLockKey(itemID)}
	err := resilience.Retry(ctx, conflictRetry, func() error {
		return s.locks.withLocks(ctx, "item", keys, func(ctx context.Context) error {
			inv, err := s.deps.Inventories.FindByID(ctx, inventoryID)
			if err != nil {
				return err
			}
			if err := inv.AcceptsCount(stage, auditAccess); err != nil {
				return err
			}

			item, err := s.deps.Items.FindByID(ctx, itemID)
			if err != nil {
				return err
			}
			if quantity, err = pick(item); err != nil {
				return err
			}

			prior = itemSnapshot(item)
			wasSettled := item.IsSettled()
			now := time.Now().UTC()

			if outcome, err = item.ApplyCount(stage, quantity, actor, now); err != nil {
				return err
			}
			entry := domain.NewCount(item, stage, quantity, actor, now)

			events := []domain.DomainEvent{domain.NewItemCountedEvent(item, stage, quantity, actor, now)}
			settled = outcome.Settled() && (!wasSettled || stage == domain.StageAudit)
			if settled {
				events = append(events, domain.NewItemSettledEvent(item, now))
			}

			err = s.persist(ctx, func(ctx context.Context) error {
				if stage == domain.StageAudit {
					if err := s.deps.Counts.SupersedeStage(ctx, item.ID, stage); err != nil {
						return err
					}
				}
				if err := s.deps.Counts.Append(ctx, entry); err != nil {
					return err
				}
				if err := s.deps.Items.Save(ctx, item); err != nil {
					return err
				}
				return s.deps.Events.Append(ctx, events...)
			})
			if err != nil {
				return err
			}

			result = &CountResultDTO{Count: *ToCountDTO(entry), Item: *ToItemDTO(item)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordCount(stage.Int())
	if settled {
		s.deps.Metrics.RecordItemSettled(outcome.Classification.String())
	}

	entry := domain.NewAuditEntry(actor, domain.AuditActionCount, domain.EntityItem, itemID)
	entry.OldValue = prior
	entry.NewValue = map[string]any{
		"stage":          stage.Int(),
		"quantity":       quantity,
		"finalQuantity":  outcome.FinalQuantity,
		"classification": outcome.Classification.String(),
	}
	entry.Metadata = map[string]any{"inventoryId": inventoryID}
	s.audit.record(ctx, entry)

	s.logger.Info("Recorded count",
		"inventoryId", inventoryID,
		"itemId", itemID,
		"stage", stage.Int(),
		"quantity", quantity,
		"classification", outcome.Classification.String(),
	)
	return result, nil
}

func itemSnapshot(item *domain.InventoryItem) map[string]any {
	return map[string]any{
		"finalQuantity":  item.FinalQuantity,
		"classification": item.Classification.String(),
		"status":         item.Status.String(),
	}
}

// ListCounts returns the ledger entries for an item, oldest first
func (s *CountService) ListCounts(ctx context.Context, itemID string) ([]CountDTO, error) {
	if _, err := s.deps.Items.FindByID(ctx, itemID); err != nil {
		return nil, toAppError(err)
	}
	counts, err := s.deps.Counts.ListByItem(ctx, itemID)
	if err != nil {
		return nil, toAppError(err)
	}
	dtos := make([]CountDTO, 0, len(counts))
	for _, c := range counts {
		dtos = append(dtos, *ToCountDTO(c))
	}
	return dtos, nil
}

// BulkConfirm settles every unsettled item in audit mode with an audit count
// equal to its most recent round count. Items never counted are skipped.
// Each item is its own atomic unit; a failure does not undo earlier items.
func (s *CountService) BulkConfirm(ctx context.Context, cmd BulkConfirmCommand) (*BulkConfirmResultDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "CountService.BulkConfirm", func(ctx context.Context) (*BulkConfirmResultDTO, error) {
		auditAccess := s.deps.Policy.HasAuditAccess(cmd.Role)

		inv, err := s.deps.Inventories.FindByID(ctx, cmd.InventoryID)
		if err != nil {
			return nil, err
		}
		if err := inv.AcceptsCount(domain.StageAudit, auditAccess); err != nil {
			return nil, err
		}

		items, err := s.deps.Items.FindByInventory(ctx, inv.ID, domain.ItemFilter{UnsettledOnly: true})
		if err != nil {
			return nil, err
		}

		res := &BulkConfirmResultDTO{InventoryID: inv.ID}
		pick := func(item *domain.InventoryItem) (int, error) {
			if item.IsSettled() {
				return 0, errSkipItem
			}
			latest := item.LatestRoundCount()
			if latest == nil {
				return 0, errSkipItem
			}
			return latest.Quantity, nil
		}

		for i, batch := range chunk(items, s.deps.BatchSize) {
			if err := ctx.Err(); err != nil {
				return res, batchInterrupted(err, map[string]int{
					"confirmed": res.Confirmed,
					"skipped":   res.Skipped,
					"failed":    res.Failed,
				})
			}
			for _, item := range batch {
				_, err := s.record(ctx, inv.ID, item.ID, domain.StageAudit, cmd.Actor, auditAccess, pick)
				switch {
				case err == nil:
					res.Confirmed++
				case stderrors.Is(err, errSkipItem):
					res.Skipped++
				default:
					res.Failed++
					res.Failures = append(res.Failures, failureFromError(item.ID, err))
				}
			}
			s.logger.Info("Bulk confirm batch processed",
				"inventoryId", inv.ID,
				"batch", i+1,
				"confirmed", res.Confirmed,
				"skipped", res.Skipped,
				"failed", res.Failed,
			)
		}
		return res, nil
	}, tracing.InventoryAttributes(cmd.InventoryID)...)
	if err != nil {
		// result holds the partial progress of an interrupted batch
		return result, toAppError(err)
	}
	return result, nil
}
