package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stockcount-service/internal/application"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

// SerialHandler handles serial registration, scanning and resolution
type SerialHandler struct {
	serials SerialService
	logger  *logging.Logger
}

// NewSerialHandler creates a new SerialHandler
func NewSerialHandler(serials SerialService, logger *logging.Logger) *SerialHandler {
	return &SerialHandler{serials: serials, logger: logger}
}

// Initialize handles POST /api/v1/inventories/:id/serials
func (h *SerialHandler) Initialize(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req initializeSerialsRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.serials.InitializeSerials(c.Request.Context(), req.toCommand(c.Param("id"), middleware.GetUserID(c)))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// List handles GET /api/v1/inventories/:id/serials
func (h *SerialHandler) List(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.serials.ListSerials(c.Request.Context(), application.ListSerialsQuery{
		InventoryID: c.Param("id"),
		Resolution:  c.Query("resolution"),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Summary handles GET /api/v1/inventories/:id/serials/summary
func (h *SerialHandler) Summary(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.serials.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Scan handles POST /api/v1/inventories/:id/serials/scans
func (h *SerialHandler) Scan(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req recordScanRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.serials.RecordScan(c.Request.Context(), application.RecordScanCommand{
		InventoryID:  c.Param("id"),
		SerialNumber: req.SerialNumber,
		ProductID:    req.ProductID,
		Stage:        req.Stage,
		LocationID:   req.LocationID,
		ScannedBy:    middleware.GetUserID(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	status := http.StatusOK
	if result.Changed {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": result})
}

// Finalize handles POST /api/v1/inventories/:id/serials/finalize
func (h *SerialHandler) Finalize(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	inventoryID := c.Param("id")
	marked, err := h.serials.FinalizeNotFound(c.Request.Context(), inventoryID)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"inventoryId": inventoryID, "notFound": marked}})
}

// MigrateResolved handles POST /api/v1/inventories/:id/serials/migrate
func (h *SerialHandler) MigrateResolved(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.serials.MigrateResolved(c.Request.Context(), application.MigrateSerialsCommand{
		InventoryID: c.Param("id"),
		Actor:       middleware.GetUserID(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Resolve handles POST /api/v1/serials/:id/resolve
func (h *SerialHandler) Resolve(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req resolveSerialRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.serials.Resolve(c.Request.Context(), application.ResolveSerialCommand{
		SerialItemID: c.Param("id"),
		Notes:        req.Notes,
		Resolver:     middleware.GetUserID(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
