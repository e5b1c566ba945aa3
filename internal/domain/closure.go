package domain

// maxReportedUnsettled caps the item IDs listed in a closure report
const maxReportedUnsettled = 50

// ClosureReport is the outcome of the closure gate
type ClosureReport struct {
	Allowed          bool     `json:"allowed"`
	UnsettledCount   int      `json:"unsettledCount"`
	TotalItems       int      `json:"totalItems"`
	UnsettledItemIDs []string `json:"unsettledItemIds,omitempty"`
}

// EvaluateClosure allows closure only when every item has a final quantity.
// An inventory without items is trivially closable.
func EvaluateClosure(items []*InventoryItem) ClosureReport {
	report := ClosureReport{TotalItems: len(items)}
	for _, item := range items {
		if item.IsSettled() {
			continue
		}
		report.UnsettledCount++
		if len(report.UnsettledItemIDs) < maxReportedUnsettled {
			report.UnsettledItemIDs = append(report.UnsettledItemIDs, item.ID)
		}
	}
	report.Allowed = report.UnsettledCount == 0
	return report
}
