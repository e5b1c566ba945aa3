package domain

import (
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	statusPlanning       = "planning"
	statusOpen           = "open"
	statusCount1Open     = "count1_open"
	statusCount1Closed   = "count1_closed"
	statusCount2Open     = "count2_open"
	statusCount2Closed   = "count2_closed"
	statusCount3Required = "count3_required"
	statusCount3Open     = "count3_open"
	statusCount3Closed   = "count3_closed"
	statusAuditMode      = "audit_mode"
	statusClosed         = "closed"
	statusCancelled      = "cancelled"
)

// InventoryStatus is the lifecycle state of an inventory
type InventoryStatus struct {
	value string
}

var (
	StatusPlanning       = InventoryStatus{statusPlanning}
	StatusOpen           = InventoryStatus{statusOpen}
	StatusCount1Open     = InventoryStatus{statusCount1Open}
	StatusCount1Closed   = InventoryStatus{statusCount1Closed}
	StatusCount2Open     = InventoryStatus{statusCount2Open}
	StatusCount2Closed   = InventoryStatus{statusCount2Closed}
	StatusCount3Required = InventoryStatus{statusCount3Required}
	StatusCount3Open     = InventoryStatus{statusCount3Open}
	StatusCount3Closed   = InventoryStatus{statusCount3Closed}
	StatusAuditMode      = InventoryStatus{statusAuditMode}
	StatusClosed         = InventoryStatus{statusClosed}
	StatusCancelled      = InventoryStatus{statusCancelled}
)

// Any non-terminal state may additionally move to cancelled.
var inventoryTransitions = map[string][]string{
	statusPlanning:       {statusOpen},
	statusOpen:           {statusCount1Open},
	statusCount1Open:     {statusCount1Closed},
	statusCount1Closed:   {statusCount2Open},
	statusCount2Open:     {statusCount2Closed},
	statusCount2Closed:   {statusCount3Required, statusCount3Open, statusAuditMode},
	statusCount3Required: {statusCount3Open},
	statusCount3Open:     {statusCount3Closed},
	statusCount3Closed:   {statusAuditMode},
	statusAuditMode:      {statusClosed},
}

// NewInventoryStatus parses a status, rejecting unknown values
func NewInventoryStatus(value string) (InventoryStatus, error) {
	switch value {
	case statusPlanning, statusOpen,
		statusCount1Open, statusCount1Closed,
		statusCount2Open, statusCount2Closed,
		statusCount3Required, statusCount3Open, statusCount3Closed,
		statusAuditMode, statusClosed, statusCancelled:
		return InventoryStatus{value}, nil
	default:
		return InventoryStatus{}, newRuleError(KindValidation, CodeInvalidInventory, "unknown inventory status %q", value)
	}
}

func (s InventoryStatus) String() string {
	return s.value
}

func (s InventoryStatus) Equals(other InventoryStatus) bool {
	return s.value == other.value
}

// IsTerminal is true for closed and cancelled
func (s InventoryStatus) IsTerminal() bool {
	return s.value == statusClosed || s.value == statusCancelled
}

// CanTransitionTo checks the lifecycle table
func (s InventoryStatus) CanTransitionTo(target InventoryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target.value == statusCancelled {
		return true
	}
	for _, allowed := range inventoryTransitions[s.value] {
		if allowed == target.value {
			return true
		}
	}
	return false
}

// OpenStage returns the count stage accepting writes in this status, if any
func (s InventoryStatus) OpenStage() (Stage, bool) {
	switch s.value {
	case statusCount1Open:
		return StageFirst, true
	case statusCount2Open:
		return StageSecond, true
	case statusCount3Open:
		return StageThird, true
	case statusAuditMode:
		return StageAudit, true
	default:
		return 0, false
	}
}

func (s InventoryStatus) MarshalText() ([]byte, error) {
	return []byte(s.value), nil
}

func (s *InventoryStatus) UnmarshalText(data []byte) error {
	parsed, err := NewInventoryStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s InventoryStatus) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(s.value)
}

func (s *InventoryStatus) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(t, data)
	if err != nil || raw == "" {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

const (
	typeGeneral  = "general"
	typeCyclic   = "cyclic"
	typeTargeted = "targeted"
)

// InventoryType describes the scope of a counting session
type InventoryType struct {
	value string
}

var (
	TypeGeneral  = InventoryType{typeGeneral}
	TypeCyclic   = InventoryType{typeCyclic}
	TypeTargeted = InventoryType{typeTargeted}
)

func NewInventoryType(value string) (InventoryType, error) {
	switch value {
	case typeGeneral, typeCyclic, typeTargeted:
		return InventoryType{value}, nil
	default:
		return InventoryType{}, newRuleError(KindValidation, CodeInvalidInventory, "unknown inventory type %q", value)
	}
}

func (t InventoryType) String() string { return t.value }

func (t InventoryType) IsZero() bool { return t.value == "" }

func (t InventoryType) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

func (t *InventoryType) UnmarshalText(data []byte) error {
	parsed, err := NewInventoryType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t InventoryType) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalEnumBSON(t.value)
}

func (t *InventoryType) UnmarshalBSONValue(bt bsontype.Type, data []byte) error {
	raw, err := unmarshalEnumBSON(bt, data)
	if err != nil || raw == "" {
		return err
	}
	return t.UnmarshalText([]byte(raw))
}
