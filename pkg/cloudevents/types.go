package cloudevents

import (
	"time"
)

// Event types emitted by the stock-count service
const (
	InventoryCreated       = "wms.stockcount.inventory-created"
	InventoryStatusChanged = "wms.stockcount.inventory-status-changed"
	InventoryCancelled     = "wms.stockcount.inventory-cancelled"
	InventoryClosed        = "wms.stockcount.inventory-closed"
	InventoryMigrated      = "wms.stockcount.inventory-migrated"
	ItemCounted            = "wms.stockcount.item-counted"
	ItemSettled            = "wms.stockcount.item-settled"
	SerialScanned          = "wms.stockcount.serial-scanned"
	SerialResolved         = "wms.stockcount.serial-resolved"
)

// SourceStockCount is the CloudEvents source of this service
const SourceStockCount = "/wms/stockcount-service"

// WMSCloudEvent is a CloudEvents v1.0 envelope with WMS extensions
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	InventoryID   string `json:"wmsinventoryid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}
