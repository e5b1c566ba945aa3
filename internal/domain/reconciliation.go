package domain

import (
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Stage identifies one of the four count slots of an item
type Stage int

const (
	StageFirst  Stage = 1
	StageSecond Stage = 2
	StageThird  Stage = 3
	StageAudit  Stage = 4
)

// ParseStage validates a stage number
func ParseStage(n int) (Stage, error) {
	if n < int(StageFirst) || n > int(StageAudit) {
		return 0, ErrInvalidStage
	}
	return Stage(n), nil
}

func (s Stage) Int() int { return int(s) }

const (
	classPendingCount         = "pending_count"
	classNoDivergence         = "no_divergence"
	classConsistentDivergence = "consistent_divergence"
	classNeedsThirdCount      = "needs_third_count"
	classResolvedThirdCount   = "resolved_third_count"
	classNeedsAudit           = "needs_audit"
	classAuditSettled         = "audit_settled"
)

// Classification is the reconciliation verdict for an item's counts
type Classification struct {
	value string
}

var (
	ClassPendingCount         = Classification{classPendingCount}
	ClassNoDivergence         = Classification{classNoDivergence}
	ClassConsistentDivergence = Classification{classConsistentDivergence}
	ClassNeedsThirdCount      = Classification{classNeedsThirdCount}
	ClassResolvedThirdCount   = Classification{classResolvedThirdCount}
	ClassNeedsAudit           = Classification{classNeedsAudit}
	ClassAuditSettled         = Classification{classAuditSettled}
)

// AllClassifications lists every classification in rule order
var AllClassifications = []Classification{
	ClassPendingCount, ClassNoDivergence, ClassConsistentDivergence, ClassNeedsThirdCount,
	ClassResolvedThirdCount, ClassNeedsAudit, ClassAuditSettled,
}

func NewClassification(value string) (Classification, error) {
	switch value {
	case classPendingCount, classNoDivergence, classConsistentDivergence,
		classNeedsThirdCount, classResolvedThirdCount, classNeedsAudit, classAuditSettled:
		return Classification{value}, nil
	default:
		return Classification{}, newRuleError(KindValidation, CodeInvalidInventory, "unknown classification %q", value)
	}
}

func (c Classification) String() string { return c.value }

func (c Classification) Equals(other Classification) bool { return c.value == other.value }

// IsSettled is true when the classification implies a final quantity
func (c Classification) IsSettled() bool {
	switch c.value {
	case classNoDivergence, classConsistentDivergence, classResolvedThirdCount, classAuditSettled:
		return true
	default:
		return false
	}
}

func (c Classification) MarshalText() ([]byte, error) { return []byte(c.value), nil }

func (c *Classification) UnmarshalText(data []byte) error {
	parsed, err := NewClassification(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Classification) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(c.value)
}

func (c *Classification) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(t, data)
	if err != nil || raw == "" {
		return err
	}
	return c.UnmarshalText([]byte(raw))
}

const (
	itemPending        = "pending"
	itemInProgress     = "in_progress"
	itemPendingRecount = "pending_recount"
	itemPendingAudit   = "pending_audit"
	itemConfirmed      = "confirmed"
	itemDivergent      = "divergent"
)

// ItemStatus is the workflow position of a single item
type ItemStatus struct {
	value string
}

var (
	ItemPending        = ItemStatus{itemPending}
	ItemInProgress     = ItemStatus{itemInProgress}
	ItemPendingRecount = ItemStatus{itemPendingRecount}
	ItemPendingAudit   = ItemStatus{itemPendingAudit}
	ItemConfirmed      = ItemStatus{itemConfirmed}
	ItemDivergent      = ItemStatus{itemDivergent}
)

func NewItemStatus(value string) (ItemStatus, error) {
	switch value {
	case itemPending, itemInProgress, itemPendingRecount, itemPendingAudit, itemConfirmed, itemDivergent:
		return ItemStatus{value}, nil
	default:
		return ItemStatus{}, newRuleError(KindValidation, CodeInvalidInventory, "unknown item status %q", value)
	}
}

func (s ItemStatus) String() string { return s.value }

func (s ItemStatus) Equals(other ItemStatus) bool { return s.value == other.value }

func (s ItemStatus) MarshalText() ([]byte, error) { return []byte(s.value), nil }

func (s *ItemStatus) UnmarshalText(data []byte) error {
	parsed, err := NewItemStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ItemStatus) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(s.value)
}

func (s *ItemStatus) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(t, data)
	if err != nil || raw == "" {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

// CountSet holds the recorded quantity per stage; nil means not counted
type CountSet struct {
	Count1 *int
	Count2 *int
	Count3 *int
	Count4 *int
}

// Outcome is the result of reconciling a CountSet against the expected quantity
type Outcome struct {
	FinalQuantity  *int
	Divergence     *int
	Classification Classification
	Status         ItemStatus
}

// Settled reports whether a final quantity was determined
func (o Outcome) Settled() bool {
	return o.FinalQuantity != nil
}

// Reconcile derives the final quantity and classification from recorded
// counts. Rules are evaluated in order and the first match wins:
//
//  1. An audit count always settles the item.
//  2. Two matching first counts settle the item at that value.
//  3. Otherwise a third count settles the item when it matches whichever of
//     the first two counts was recorded.
//  4. A third count matching neither leaves the item for audit.
//
// The function is pure; identical inputs always produce identical outputs.
func Reconcile(expected int, counts CountSet) Outcome {
	switch {
	case counts.Count4 != nil:
		return settle(expected, *counts.Count4, ClassAuditSettled)

	case counts.Count1 != nil && counts.Count2 != nil && *counts.Count1 == *counts.Count2:
		c := *counts.Count1
		if c == expected {
			return settle(expected, c, ClassNoDivergence)
		}
		return settle(expected, c, ClassConsistentDivergence)

	case counts.Count3 != nil:
		c3 := *counts.Count3
		if matches(counts.Count1, c3) || matches(counts.Count2, c3) {
			return settle(expected, c3, ClassResolvedThirdCount)
		}
		return Outcome{Classification: ClassNeedsAudit, Status: ItemPendingAudit}

	case counts.Count1 != nil && counts.Count2 != nil:
		return Outcome{Classification: ClassNeedsThirdCount, Status: ItemPendingRecount}

	case counts.Count1 != nil || counts.Count2 != nil:
		return Outcome{Classification: ClassPendingCount, Status: ItemInProgress}

	default:
		return Outcome{Classification: ClassPendingCount, Status: ItemPending}
	}
}

func matches(count *int, value int) bool {
	return count != nil && *count == value
}

func settle(expected, final int, class Classification) Outcome {
	divergence := final - expected
	status := ItemConfirmed
	if divergence != 0 {
		status = ItemDivergent
	}
	return Outcome{
		FinalQuantity:  &final,
		Divergence:     &divergence,
		Classification: class,
		Status:         status,
	}
}
