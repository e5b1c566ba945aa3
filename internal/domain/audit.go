package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditActionCreate          = "create"
	AuditActionStatusChange    = "status_change"
	AuditActionCount           = "count"
	AuditActionDelete          = "delete"
	AuditActionScan            = "serial_scan"
	AuditActionResolve         = "serial_resolve"
	AuditActionSerialMigration = "serial_migration"
	AuditActionERPMigration    = "erp_migration"
)

// Audited entity types
const (
	EntityInventory = "inventory"
	EntityItem      = "inventory_item"
	EntitySerial    = "serial_item"
)

// AuditEntry is one record in the external audit log
type AuditEntry struct {
	ID         string         `bson:"_id" json:"id"`
	Actor      string         `bson:"actor" json:"actor"`
	Action     string         `bson:"action" json:"action"`
	EntityType string         `bson:"entityType" json:"entityType"`
	EntityID   string         `bson:"entityId" json:"entityId"`
	OldValue   any            `bson:"oldValue,omitempty" json:"oldValue,omitempty"`
	NewValue   any            `bson:"newValue,omitempty" json:"newValue,omitempty"`
	Metadata   map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	RecordedAt time.Time      `bson:"recordedAt" json:"recordedAt"`
}

// NewAuditEntry creates an entry stamped with a fresh ID and the current time
func NewAuditEntry(actor, action, entityType, entityID string) AuditEntry {
	return AuditEntry{
		ID:         uuid.New().String(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RecordedAt: time.Now().UTC(),
	}
}
