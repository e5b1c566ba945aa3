package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stockcount-service/internal/application"
	"github.com/wms-platform/stockcount-service/pkg/errors"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

const maxPageSize = 500

// InventoryHandler handles inventory lifecycle, closure, dashboard and ERP requests
type InventoryHandler struct {
	lifecycle LifecycleService
	query     QueryService
	migration MigrationService
	logger    *logging.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(lifecycle LifecycleService, query QueryService, migration MigrationService, logger *logging.Logger) *InventoryHandler {
	return &InventoryHandler{
		lifecycle: lifecycle,
		query:     query,
		migration: migration,
		logger:    logger,
	}
}

// Create handles POST /api/v1/inventories
func (h *InventoryHandler) Create(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req createInventoryRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.lifecycle.CreateInventory(c.Request.Context(), req.toCommand(middleware.GetUserID(c)))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// List handles GET /api/v1/inventories
func (h *InventoryHandler) List(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	limit, offset, appErr := pagination(c)
	if appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	result, err := h.query.ListInventories(c.Request.Context(), application.ListInventoriesQuery{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "limit": limit, "offset": offset})
}

// Get handles GET /api/v1/inventories/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.query.GetInventory(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Delete handles DELETE /api/v1/inventories/:id
func (h *InventoryHandler) Delete(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	if err := h.lifecycle.DeleteInventory(c.Request.Context(), h.transitionCommand(c)); err != nil {
		responder.RespondWithError(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Open handles POST /api/v1/inventories/:id/open
func (h *InventoryHandler) Open(c *gin.Context) {
	h.respondTransition(c, func() (*application.TransitionResultDTO, error) {
		return h.lifecycle.OpenInventory(c.Request.Context(), h.transitionCommand(c))
	})
}

// StartRound handles POST /api/v1/inventories/:id/rounds/:round/start
func (h *InventoryHandler) StartRound(c *gin.Context) {
	h.respondRound(c, h.lifecycle.StartCounting)
}

// FinishRound handles POST /api/v1/inventories/:id/rounds/:round/finish
func (h *InventoryHandler) FinishRound(c *gin.Context) {
	h.respondRound(c, h.lifecycle.FinishCounting)
}

// Close handles POST /api/v1/inventories/:id/close
func (h *InventoryHandler) Close(c *gin.Context) {
	h.respondTransition(c, func() (*application.TransitionResultDTO, error) {
		return h.lifecycle.CloseInventory(c.Request.Context(), h.transitionCommand(c))
	})
}

// Cancel handles POST /api/v1/inventories/:id/cancel
func (h *InventoryHandler) Cancel(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req cancelInventoryRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	h.respondTransition(c, func() (*application.TransitionResultDTO, error) {
		return h.lifecycle.CancelInventory(c.Request.Context(), application.CancelInventoryCommand{
			InventoryID: c.Param("id"),
			Reason:      req.Reason,
			Actor:       middleware.GetUserID(c),
		})
	})
}

// Closure handles GET /api/v1/inventories/:id/closure
func (h *InventoryHandler) Closure(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.lifecycle.CanClose(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Dashboard handles GET /api/v1/inventories/:id/dashboard
func (h *InventoryHandler) Dashboard(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.query.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// MigrateToERP handles POST /api/v1/inventories/:id/erp-migration
func (h *InventoryHandler) MigrateToERP(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	result, err := h.migration.MigrateToERP(c.Request.Context(), application.MigrateToERPCommand{
		InventoryID: c.Param("id"),
		Actor:       middleware.GetUserID(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *InventoryHandler) transitionCommand(c *gin.Context) application.TransitionCommand {
	return application.TransitionCommand{
		InventoryID: c.Param("id"),
		Actor:       middleware.GetUserID(c),
		Role:        middleware.GetUserRole(c),
	}
}

func (h *InventoryHandler) respondRound(c *gin.Context, fn func(ctx context.Context, cmd application.CountingRoundCommand) (*application.TransitionResultDTO, error)) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	round, err := strconv.Atoi(c.Param("round"))
	if err != nil {
		responder.RespondWithAppError(errors.ErrValidationWithFields("invalid round", map[string]string{"round": "must be a number"}))
		return
	}

	h.respondTransition(c, func() (*application.TransitionResultDTO, error) {
		return fn(c.Request.Context(), application.CountingRoundCommand{
			InventoryID: c.Param("id"),
			Round:       round,
			Actor:       middleware.GetUserID(c),
		})
	})
}

func (h *InventoryHandler) respondTransition(c *gin.Context, fn func() (*application.TransitionResultDTO, error)) {
	result, err := fn()
	if err != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// pagination reads limit and offset query parameters
func pagination(c *gin.Context) (int, int, *errors.AppError) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > maxPageSize {
		return 0, 0, errors.ErrValidationWithFields("invalid pagination", map[string]string{"limit": "must be between 1 and " + strconv.Itoa(maxPageSize)})
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, errors.ErrValidationWithFields("invalid pagination", map[string]string{"offset": "must be zero or positive"})
	}
	return limit, offset, nil
}
