package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

// Handlers groups the HTTP handlers of the service
type Handlers struct {
	Inventory *InventoryHandler
	Count     *CountHandler
	Serial    *SerialHandler

	// Idempotency, when set, replays responses of retried mutating requests
	Idempotency gin.HandlerFunc
}

// SetupRoutes configures all HTTP routes for the stock-count service
func SetupRoutes(router *gin.Engine, h *Handlers) {
	// caller identity comes from the gateway headers
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireActor())
	if h.Idempotency != nil {
		v1.Use(h.Idempotency)
	}
	{
		inventories := v1.Group("/inventories")
		{
			inventories.POST("", h.Inventory.Create)
			inventories.GET("", h.Inventory.List)
			inventories.GET("/:id", h.Inventory.Get)
			inventories.DELETE("/:id", h.Inventory.Delete)

			inventories.POST("/:id/open", h.Inventory.Open)
			inventories.POST("/:id/rounds/:round/start", h.Inventory.StartRound)
			inventories.POST("/:id/rounds/:round/finish", h.Inventory.FinishRound)
			inventories.POST("/:id/close", h.Inventory.Close)
			inventories.POST("/:id/cancel", h.Inventory.Cancel)
			inventories.GET("/:id/closure", h.Inventory.Closure)
			inventories.GET("/:id/dashboard", h.Inventory.Dashboard)
			inventories.POST("/:id/erp-migration", h.Inventory.MigrateToERP)

			inventories.GET("/:id/items", h.Count.ListItems)
			inventories.POST("/:id/bulk-confirm", h.Count.BulkConfirm)

			inventories.POST("/:id/serials", h.Serial.Initialize)
			inventories.GET("/:id/serials", h.Serial.List)
			inventories.GET("/:id/serials/summary", h.Serial.Summary)
			inventories.POST("/:id/serials/scans", h.Serial.Scan)
			inventories.POST("/:id/serials/finalize", h.Serial.Finalize)
			inventories.POST("/:id/serials/migrate", h.Serial.MigrateResolved)
		}

		items := v1.Group("/items")
		{
			items.GET("/:id", h.Count.GetItem)
			items.POST("/:id/counts", h.Count.RecordCount)
			items.GET("/:id/counts", h.Count.ListCounts)
		}

		serials := v1.Group("/serials")
		{
			serials.POST("/:id/resolve", h.Serial.Resolve)
		}
	}
}
