package application

import (
	"github.com/wms-platform/stockcount-service/internal/domain"
)

// ToInventoryDTO converts a domain Inventory to InventoryDTO
func ToInventoryDTO(inv *domain.Inventory) *InventoryDTO {
	if inv == nil {
		return nil
	}
	return &InventoryDTO{
		ID:                    inv.ID,
		Code:                  inv.Code,
		Description:           inv.Description,
		Type:                  inv.Type.String(),
		Status:                inv.Status.String(),
		LocationIDs:           inv.Criteria.LocationIDs,
		CategoryIDs:           inv.Criteria.CategoryIDs,
		ProductIDs:            inv.Criteria.ProductIDs,
		BlocksSystemMovements: inv.BlocksSystemMovements,
		StartDate:             inv.StartDate,
		EndDate:               inv.EndDate,
		PredictedEndDate:      inv.PredictedEndDate,
		CreatedBy:             inv.CreatedBy,
		CancelReason:          inv.CancelReason,
		Migrated:              inv.Migrated,
		MigratedAt:            inv.MigratedAt,
		MigratedBy:            inv.MigratedBy,
		CreatedAt:             inv.CreatedAt,
		UpdatedAt:             inv.UpdatedAt,
	}
}

func toCountValueDTO(v *domain.CountValue) *CountValueDTO {
	if v == nil {
		return nil
	}
	return &CountValueDTO{Quantity: v.Quantity, CountedBy: v.CountedBy, CountedAt: v.CountedAt}
}

// ToItemDTO converts a domain InventoryItem to ItemDTO
func ToItemDTO(item *domain.InventoryItem) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:               item.ID,
		InventoryID:      item.InventoryID,
		ProductID:        item.ProductID,
		ProductCode:      item.ProductCode,
		CategoryID:       item.CategoryID,
		LocationID:       item.LocationID,
		ExpectedQuantity: item.ExpectedQuantity,
		Count1:           toCountValueDTO(item.Count1),
		Count2:           toCountValueDTO(item.Count2),
		Count3:           toCountValueDTO(item.Count3),
		Count4:           toCountValueDTO(item.Count4),
		FinalQuantity:    item.FinalQuantity,
		Divergence:       item.Divergence,
		Classification:   item.Classification.String(),
		Status:           item.Status.String(),
		UpdatedAt:        item.UpdatedAt,
	}
}

// ToItemDTOs converts a slice of items
func ToItemDTOs(items []*domain.InventoryItem) []ItemDTO {
	dtos := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, *ToItemDTO(item))
	}
	return dtos
}

// ToCountDTO converts a ledger entry
func ToCountDTO(c *domain.Count) *CountDTO {
	if c == nil {
		return nil
	}
	return &CountDTO{
		ID:         c.ID,
		ItemID:     c.ItemID,
		Stage:      c.Stage.Int(),
		Quantity:   c.Quantity,
		CountedBy:  c.CountedBy,
		CountedAt:  c.CountedAt,
		Superseded: c.Superseded,
	}
}

// ToTransitionDTOs converts applied transitions
func ToTransitionDTOs(transitions []domain.Transition) []TransitionDTO {
	dtos := make([]TransitionDTO, 0, len(transitions))
	for _, t := range transitions {
		dtos = append(dtos, TransitionDTO{
			From:   t.From.String(),
			To:     t.To.String(),
			Actor:  t.Actor,
			Reason: t.Reason,
			At:     t.At,
		})
	}
	return dtos
}

// ToClosureReportDTO converts a closure report
func ToClosureReportDTO(inventoryID string, r domain.ClosureReport) *ClosureReportDTO {
	return &ClosureReportDTO{
		InventoryID:      inventoryID,
		Allowed:          r.Allowed,
		UnsettledCount:   r.UnsettledCount,
		TotalItems:       r.TotalItems,
		UnsettledItemIDs: r.UnsettledItemIDs,
	}
}

// ToSerialItemDTO converts a domain SerialItem to SerialItemDTO
func ToSerialItemDTO(s *domain.SerialItem) *SerialItemDTO {
	if s == nil {
		return nil
	}
	return &SerialItemDTO{
		ID:                 s.ID,
		InventoryID:        s.InventoryID,
		SerialNumber:       s.SerialNumber,
		ProductID:          s.ProductID,
		Expected:           s.Expected,
		ExpectedLocationID: s.ExpectedLocationID,
		FoundLocationID:    s.FoundLocationID,
		FoundStage:         s.FoundStage,
		ScannedBy:          s.ScannedBy,
		ScannedAt:          s.ScannedAt,
		Discrepancy:        s.Discrepancy.String(),
		Resolution:         s.Resolution.String(),
		ResolutionNotes:    s.ResolutionNotes,
		ResolvedBy:         s.ResolvedBy,
		ResolvedAt:         s.ResolvedAt,
		MigratedAt:         s.MigratedAt,
	}
}

// ToSerialSummaryDTO converts a serial summary
func ToSerialSummaryDTO(s domain.SerialSummary) SerialSummaryDTO {
	return SerialSummaryDTO{
		Total:             s.Total,
		Found:             s.Found,
		Expected:          s.Expected,
		OpenDiscrepancies: s.OpenDiscrepancies,
		ByDiscrepancy:     s.ByDiscrepancy,
		ByResolution:      s.ByResolution,
	}
}

func toStockLines(inputs []StockLineInput) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, domain.StockLine{
			ProductID:   in.ProductID,
			ProductCode: in.ProductCode,
			CategoryID:  in.CategoryID,
			LocationID:  in.LocationID,
			Quantity:    in.Quantity,
		})
	}
	return lines
}
