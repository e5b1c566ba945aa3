package domain

import (
	"fmt"
	"strconv"
)

// ErrorKind groups rule violations by how callers should react to them
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindForbidden
	KindState
	KindNotFound
	KindConflict
	KindIntegration
	KindInconsistency
)

// Reason codes. These are part of the public API contract.
const (
	CodeInvalidStage            = "INVALID_STAGE"
	CodeNegativeQuantity        = "NEGATIVE_QUANTITY"
	CodeStageNotOpen            = "STAGE_NOT_OPEN"
	CodeStageAlreadyCounted     = "STAGE_ALREADY_COUNTED"
	CodeAuditAccessRequired     = "AUDIT_ACCESS_REQUIRED"
	CodeThirdCountNotRequired   = "THIRD_COUNT_NOT_REQUIRED"
	CodeResolutionNotesRequired = "RESOLUTION_NOTES_REQUIRED"
	CodeCancelReasonRequired    = "CANCEL_REASON_REQUIRED"
	CodeNoDiscrepancy           = "NO_DISCREPANCY"
	CodeInvalidInventory        = "INVALID_INVENTORY"
	CodeInvalidSerial           = "INVALID_SERIAL"

	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnsettledItems    = "UNSETTLED_ITEMS"
	CodeInventoryTerminal = "INVENTORY_TERMINAL"
	CodeSerialMigrated    = "SERIAL_MIGRATED"
	CodeSerialResolved    = "SERIAL_RESOLVED"
	CodeSerialNotResolved = "SERIAL_NOT_RESOLVED"
	CodeAlreadyMigrated   = "ALREADY_MIGRATED"
	CodeNotCancelled      = "NOT_CANCELLED"
	CodeNotClosed         = "NOT_CLOSED"

	CodeInventoryNotFound = "INVENTORY_NOT_FOUND"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeSerialNotFound    = "SERIAL_NOT_FOUND"

	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicateCode          = "DUPLICATE_CODE"

	CodeERPRejected    = "ERP_REJECTED"
	CodeERPTimeout     = "ERP_TIMEOUT"
	CodeERPUnavailable = "ERP_UNAVAILABLE"

	CodeMissingExpectedQuantity = "MISSING_EXPECTED_QUANTITY"
)

// RuleError is a rejected operation carrying a machine-readable reason code
type RuleError struct {
	Code    string
	Kind    ErrorKind
	Message string
	Details map[string]string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on reason code, so errors.Is(err, ErrStageNotOpen) holds for
// any STAGE_NOT_OPEN error regardless of message.
func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	return ok && t.Code == e.Code
}

// Retryable reports whether repeating the operation later may succeed
func (e *RuleError) Retryable() bool {
	return e.Kind == KindIntegration || e.Kind == KindConflict
}

func newRuleError(kind ErrorKind, code, format string, args ...any) *RuleError {
	return &RuleError{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *RuleError) withDetail(key, value string) *RuleError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidStage            = &RuleError{Code: CodeInvalidStage, Kind: KindValidation, Message: "stage must be between 1 and 4"}
	ErrNegativeQuantity        = &RuleError{Code: CodeNegativeQuantity, Kind: KindValidation, Message: "quantity must not be negative"}
	ErrStageNotOpen            = &RuleError{Code: CodeStageNotOpen, Kind: KindValidation, Message: "count stage is not open"}
	ErrStageAlreadyCounted     = &RuleError{Code: CodeStageAlreadyCounted, Kind: KindValidation, Message: "stage already counted"}
	ErrAuditAccessRequired     = &RuleError{Code: CodeAuditAccessRequired, Kind: KindForbidden, Message: "audit capability required"}
	ErrThirdCountNotRequired   = &RuleError{Code: CodeThirdCountNotRequired, Kind: KindValidation, Message: "item does not need a third count"}
	ErrResolutionNotesRequired = &RuleError{Code: CodeResolutionNotesRequired, Kind: KindValidation, Message: "resolution notes are required"}
	ErrCancelReasonRequired    = &RuleError{Code: CodeCancelReasonRequired, Kind: KindValidation, Message: "cancel reason is required"}
	ErrNoDiscrepancy           = &RuleError{Code: CodeNoDiscrepancy, Kind: KindValidation, Message: "serial has no discrepancy to resolve"}
	ErrInvalidInventory        = &RuleError{Code: CodeInvalidInventory, Kind: KindValidation, Message: "invalid inventory"}
	ErrInvalidSerial           = &RuleError{Code: CodeInvalidSerial, Kind: KindValidation, Message: "invalid serial item"}

	ErrInvalidTransition = &RuleError{Code: CodeInvalidTransition, Kind: KindState, Message: "invalid status transition"}
	ErrUnsettledItems    = &RuleError{Code: CodeUnsettledItems, Kind: KindState, Message: "inventory has unsettled items"}
	ErrInventoryTerminal = &RuleError{Code: CodeInventoryTerminal, Kind: KindState, Message: "inventory is closed or cancelled"}
	ErrSerialMigrated    = &RuleError{Code: CodeSerialMigrated, Kind: KindState, Message: "serial item was migrated to ERP"}
	ErrSerialResolved    = &RuleError{Code: CodeSerialResolved, Kind: KindState, Message: "serial item is already resolved"}
	ErrSerialNotResolved = &RuleError{Code: CodeSerialNotResolved, Kind: KindState, Message: "serial item is not resolved"}
	ErrAlreadyMigrated   = &RuleError{Code: CodeAlreadyMigrated, Kind: KindState, Message: "inventory already migrated"}
	ErrNotCancelled      = &RuleError{Code: CodeNotCancelled, Kind: KindState, Message: "inventory is not cancelled"}
	ErrNotClosed         = &RuleError{Code: CodeNotClosed, Kind: KindState, Message: "inventory is not closed"}

	ErrInventoryNotFound = &RuleError{Code: CodeInventoryNotFound, Kind: KindNotFound, Message: "inventory not found"}
	ErrItemNotFound      = &RuleError{Code: CodeItemNotFound, Kind: KindNotFound, Message: "inventory item not found"}
	ErrSerialNotFound    = &RuleError{Code: CodeSerialNotFound, Kind: KindNotFound, Message: "serial item not found"}

	ErrConcurrentModification = &RuleError{Code: CodeConcurrentModification, Kind: KindConflict, Message: "record was modified concurrently"}
	ErrDuplicateCode          = &RuleError{Code: CodeDuplicateCode, Kind: KindState, Message: "inventory code already exists"}

	ErrERPRejected    = &RuleError{Code: CodeERPRejected, Kind: KindIntegration, Message: "ERP rejected the adjustment batch"}
	ErrERPTimeout     = &RuleError{Code: CodeERPTimeout, Kind: KindIntegration, Message: "ERP call timed out"}
	ErrERPUnavailable = &RuleError{Code: CodeERPUnavailable, Kind: KindIntegration, Message: "ERP is unavailable"}

	ErrMissingExpectedQuantity = &RuleError{Code: CodeMissingExpectedQuantity, Kind: KindInconsistency, Message: "item has no expected quantity"}
)

// NewUnsettledItemsError reports how many items block closure
func NewUnsettledItemsError(report ClosureReport) *RuleError {
	return newRuleError(KindState, CodeUnsettledItems,
		"%d of %d items have no final quantity", report.UnsettledCount, report.TotalItems).
		withDetail("unsettledCount", strconv.Itoa(report.UnsettledCount)).
		withDetail("totalItems", strconv.Itoa(report.TotalItems))
}

// NewInvalidTransitionError describes a rejected lifecycle move
func NewInvalidTransitionError(from, to InventoryStatus) *RuleError {
	return newRuleError(KindState, CodeInvalidTransition,
		"cannot move inventory from %s to %s", from, to).
		withDetail("currentStatus", from.String()).
		withDetail("targetStatus", to.String())
}

// NewERPError builds an integration error with the underlying cause text
func NewERPError(code, format string, args ...any) *RuleError {
	return newRuleError(KindIntegration, code, format, args...)
}
