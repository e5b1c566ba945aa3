package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/tracing"
)

// QueryService serves read models
type QueryService struct {
	serviceBase
}

// NewQueryService creates a new QueryService
func NewQueryService(deps Dependencies) *QueryService {
	return &QueryService{serviceBase: newServiceBase(deps, "query-service")}
}

// GetInventory returns one inventory
func (s *QueryService) GetInventory(ctx context.Context, inventoryID string) (*InventoryDTO, error) {
	inv, err := s.deps.Inventories.FindByID(ctx, inventoryID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToInventoryDTO(inv), nil
}

// ListInventories returns inventories matching the query
func (s *QueryService) ListInventories(ctx context.Context, query ListInventoriesQuery) ([]InventoryDTO, error) {
	filter := domain.InventoryFilter{Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status, err := domain.NewInventoryStatus(query.Status)
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Status = &status
	}
	if query.Type != "" {
		invType, err := domain.NewInventoryType(query.Type)
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Type = &invType
	}

	inventories, err := s.deps.Inventories.List(ctx, filter)
	if err != nil {
		return nil, toAppError(err)
	}
	dtos := make([]InventoryDTO, 0, len(inventories))
	for _, inv := range inventories {
		dtos = append(dtos, *ToInventoryDTO(inv))
	}
	return dtos, nil
}

// GetItem returns one inventory item
func (s *QueryService) GetItem(ctx context.Context, itemID string) (*ItemDTO, error) {
	item, err := s.deps.Items.FindByID(ctx, itemID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToItemDTO(item), nil
}

// ListItems returns the items of an inventory matching the query
func (s *QueryService) ListItems(ctx context.Context, query ListItemsQuery) ([]ItemDTO, error) {
	filter := domain.ItemFilter{
		UnsettledOnly: query.UnsettledOnly,
		LocationID:    query.LocationID,
		Limit:         query.Limit,
		Offset:        query.Offset,
	}
	if query.Status != "" {
		status, err := domain.NewItemStatus(query.Status)
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Status = &status
	}
	if query.Classification != "" {
		class, err := domain.NewClassification(query.Classification)
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Classification = &class
	}

	if _, err := s.deps.Inventories.FindByID(ctx, query.InventoryID); err != nil {
		return nil, toAppError(err)
	}
	items, err := s.deps.Items.FindByInventory(ctx, query.InventoryID, filter)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToItemDTOs(items), nil
}

// Dashboard computes progress, accuracy and divergence totals for an inventory
func (s *QueryService) Dashboard(ctx context.Context, inventoryID string) (*DashboardDTO, error) {
	result, err := tracing.TracedOperation(ctx, s.tracer, "QueryService.Dashboard", func(ctx context.Context) (*DashboardDTO, error) {
		inv, err := s.deps.Inventories.FindByID(ctx, inventoryID)
		if err != nil {
			return nil, err
		}
		items, err := s.deps.Items.FindByInventory(ctx, inv.ID, domain.ItemFilter{})
		if err != nil {
			return nil, err
		}
		serials, err := s.deps.Serials.FindByInventory(ctx, inv.ID, nil)
		if err != nil {
			return nil, err
		}

		dto := &DashboardDTO{
			InventoryID:     inv.ID,
			Code:            inv.Code,
			Status:          inv.Status.String(),
			TotalItems:      len(items),
			Classifications: make(map[string]int, len(domain.AllClassifications)),
			Serials:         ToSerialSummaryDTO(domain.SummarizeSerials(serials)),
		}
		for _, c := range domain.AllClassifications {
			dto.Classifications[c.String()] = 0
		}

		accurate := 0
		for _, item := range items {
			dto.Classifications[item.Classification.String()]++
			if item.HasAnyCount() {
				dto.CountedItems++
			}
			if !item.IsSettled() || item.Divergence == nil {
				continue
			}
			dto.SettledItems++
			switch d := *item.Divergence; {
			case d == 0:
				accurate++
			case d > 0:
				dto.Divergence.PositiveUnits += d
				dto.Divergence.DivergentItems++
			default:
				dto.Divergence.NegativeUnits += -d
				dto.Divergence.DivergentItems++
			}
		}
		dto.Divergence.NetUnits = dto.Divergence.PositiveUnits - dto.Divergence.NegativeUnits

		dto.CountProgress = percentage(dto.CountedItems, dto.TotalItems)
		dto.SettledProgress = percentage(dto.SettledItems, dto.TotalItems)
		dto.Accuracy = percentage(accurate, dto.SettledItems)
		return dto, nil
	}, tracing.InventoryAttributes(inventoryID)...)
	if err != nil {
		return nil, toAppError(err)
	}
	return result, nil
}

// percentage is part/whole*100 rounded to two places; zero when whole is zero
func percentage(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2)
}
