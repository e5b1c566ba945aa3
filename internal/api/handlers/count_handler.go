package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stockcount-service/internal/application"
	"github.com/wms-platform/stockcount-service/pkg/errors"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

// CountHandler handles item reads and count recording
type CountHandler struct {
	counts CountService
	query  QueryService
	logger *logging.Logger
}

// NewCountHandler creates a new CountHandler
func NewCountHandler(counts CountService, query QueryService, logger *logging.Logger) *CountHandler {
	return &CountHandler{
		counts: counts,
		query:  query,
		logger: logger,
	}
}

// ListItems handles GET /api/v1/inventories/:id/items
func (h *CountHandler) ListItems(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	limit, offset, appErr := pagination(c)
	if appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	unsettled, err := strconv.ParseBool(c.DefaultQuery("unsettled", "false"))
	if err != nil {
		responder.RespondWithAppError(errors.ErrValidationWithFields("invalid filter", map[string]string{"unsettled": "must be a boolean"}))
		return
	}

	result, err := h.query.ListItems(c.Request.Context(), application.ListItemsQuery{
		InventoryID:    c.Param("id"),
		Status:         c.Query("status"),
		Classification: c.Query("classification"),
		LocationID:     c.Query("locationId"),
		UnsettledOnly:  unsettled,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "limit": limit, "offset": offset})
}

// GetItem handles GET /api/v1/items/:id
func (h *CountHandler) GetItem(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.query.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RecordCount handles POST /api/v1/items/:id/counts
func (h *CountHandler) RecordCount(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req recordCountRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.counts.RecordCount(c.Request.Context(), application.RecordCountCommand{
		ItemID:    c.Param("id"),
		Stage:     req.Stage,
		Quantity:  *req.Quantity,
		CounterID: middleware.GetUserID(c),
		Role:      middleware.GetUserRole(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// ListCounts handles GET /api/v1/items/:id/counts
func (h *CountHandler) ListCounts(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.counts.ListCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// BulkConfirm handles POST /api/v1/inventories/:id/bulk-confirm
func (h *CountHandler) BulkConfirm(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.counts.BulkConfirm(c.Request.Context(), application.BulkConfirmCommand{
		InventoryID: c.Param("id"),
		Actor:       middleware.GetUserID(c),
		Role:        middleware.GetUserRole(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
