package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stockcount-service/internal/application"
	"github.com/wms-platform/stockcount-service/pkg/errors"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/middleware"
)

type stubLifecycle struct {
	LifecycleService
	createFn func(context.Context, application.CreateInventoryCommand) (*application.InventoryDTO, error)
	startFn  func(context.Context, application.CountingRoundCommand) (*application.TransitionResultDTO, error)
	closeFn  func(context.Context, application.TransitionCommand) (*application.TransitionResultDTO, error)
}

func (s *stubLifecycle) CreateInventory(ctx context.Context, cmd application.CreateInventoryCommand) (*application.InventoryDTO, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubLifecycle) StartCounting(ctx context.Context, cmd application.CountingRoundCommand) (*application.TransitionResultDTO, error) {
	return s.startFn(ctx, cmd)
}

func (s *stubLifecycle) CloseInventory(ctx context.Context, cmd application.TransitionCommand) (*application.TransitionResultDTO, error) {
	return s.closeFn(ctx, cmd)
}

type stubQuery struct {
	QueryService
	listFn func(context.Context, application.ListInventoriesQuery) ([]application.InventoryDTO, error)
}

func (s *stubQuery) ListInventories(ctx context.Context, query application.ListInventoriesQuery) ([]application.InventoryDTO, error) {
	return s.listFn(ctx, query)
}

type stubCounts struct {
	CountService
	recordFn func(context.Context, application.RecordCountCommand) (*application.CountResultDTO, error)
}

func (s *stubCounts) RecordCount(ctx context.Context, cmd application.RecordCountCommand) (*application.CountResultDTO, error) {
	return s.recordFn(ctx, cmd)
}

type stubSerials struct {
	SerialService
	scanFn     func(context.Context, application.RecordScanCommand) (*application.ScanResultDTO, error)
	finalizeFn func(context.Context, string) (int, error)
}

func (s *stubSerials) RecordScan(ctx context.Context, cmd application.RecordScanCommand) (*application.ScanResultDTO, error) {
	return s.scanFn(ctx, cmd)
}

func (s *stubSerials) FinalizeNotFound(ctx context.Context, inventoryID string) (int, error) {
	return s.finalizeFn(ctx, inventoryID)
}

type fixture struct {
	lifecycle *stubLifecycle
	query     *stubQuery
	counts    *stubCounts
	serials   *stubSerials
	router    *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	logger := logging.NewNop()

	f := &fixture{
		lifecycle: &stubLifecycle{},
		query:     &stubQuery{},
		counts:    &stubCounts{},
		serials:   &stubSerials{},
	}

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig("stockcount-test", logger.Logger))
	SetupRoutes(router, &Handlers{
		Inventory: NewInventoryHandler(f.lifecycle, f.query, nil, logger),
		Count:     NewCountHandler(f.counts, f.query, logger),
		Serial:    NewSerialHandler(f.serials, logger),
	})
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "user-1")
	req.Header.Set(middleware.HeaderUserRole, "auditor")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.APIErrorResponse {
	t.Helper()
	var resp middleware.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInventoryHandler_Create(t *testing.T) {
	f := newFixture()
	var got application.CreateInventoryCommand
	f.lifecycle.createFn = func(_ context.Context, cmd application.CreateInventoryCommand) (*application.InventoryDTO, error) {
		got = cmd
		return &application.InventoryDTO{ID: "inv-1", Code: cmd.Code, Status: "planning"}, nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/inventories", map[string]any{
		"code": "INV-1",
		"type": "general",
		"snapshot": []map[string]any{
			{"productId": "p1", "productCode": "SKU-1", "locationId": "LOC-1", "quantity": 4},
		},
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", got.CreatedBy)
	require.Len(t, got.Snapshot, 1)
	require.NotNil(t, got.Snapshot[0].Quantity)
	assert.Equal(t, 4, *got.Snapshot[0].Quantity)

	var resp struct {
		Data application.InventoryDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inv-1", resp.Data.ID)
}

func TestInventoryHandler_CreateRejectsUnknownType(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/inventories", map[string]any{"code": "INV-1", "type": "weekly"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, errors.CodeValidationError, resp.Code)
	assert.Contains(t, resp.Details, "type")
}

func TestRoutes_RequireActor(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/inventories", nil, map[string]string{middleware.HeaderUserID: ""})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.CodeUnauthorized, decodeError(t, rec).Code)
}

func TestInventoryHandler_List(t *testing.T) {
	f := newFixture()
	var got application.ListInventoriesQuery
	f.query.listFn = func(_ context.Context, query application.ListInventoriesQuery) ([]application.InventoryDTO, error) {
		got = query
		return []application.InventoryDTO{{ID: "inv-1"}}, nil
	}

	rec := f.do(t, http.MethodGet, "/api/v1/inventories?status=open&limit=10&offset=20", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, application.ListInventoriesQuery{Status: "open", Limit: 10, Offset: 20}, got)

	rec = f.do(t, http.MethodGet, "/api/v1/inventories?limit=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryHandler_StartRound(t *testing.T) {
	f := newFixture()
	var got application.CountingRoundCommand
	f.lifecycle.startFn = func(_ context.Context, cmd application.CountingRoundCommand) (*application.TransitionResultDTO, error) {
		got = cmd
		return &application.TransitionResultDTO{Inventory: application.InventoryDTO{ID: cmd.InventoryID, Status: "count2_open"}}, nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/rounds/2/start", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, application.CountingRoundCommand{InventoryID: "inv-1", Round: 2, Actor: "user-1"}, got)

	rec = f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/rounds/two/start", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryHandler_CloseRendersServiceErrors(t *testing.T) {
	f := newFixture()
	f.lifecycle.closeFn = func(_ context.Context, cmd application.TransitionCommand) (*application.TransitionResultDTO, error) {
		assert.Equal(t, "auditor", cmd.Role)
		return nil, errors.NewAppError("UNSETTLED_ITEMS", "2 items are not settled", http.StatusConflict).
			WithDetail("unsettledCount", "2")
	}

	rec := f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/close", nil, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "UNSETTLED_ITEMS", resp.Code)
	assert.Equal(t, "2", resp.Details["unsettledCount"])
	assert.Equal(t, "/api/v1/inventories/inv-1/close", resp.Path)
}

func TestCountHandler_RecordCount(t *testing.T) {
	f := newFixture()
	var got application.RecordCountCommand
	f.counts.recordFn = func(_ context.Context, cmd application.RecordCountCommand) (*application.CountResultDTO, error) {
		got = cmd
		return &application.CountResultDTO{}, nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/items/item-1/counts", map[string]any{"stage": 1, "quantity": 0}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, application.RecordCountCommand{ItemID: "item-1", Stage: 1, Quantity: 0, CounterID: "user-1", Role: "auditor"}, got)

	rec = f.do(t, http.MethodPost, "/api/v1/items/item-1/counts", map[string]any{"stage": 5, "quantity": 1}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a count stage between 1 and 4", decodeError(t, rec).Details["stage"])

	rec = f.do(t, http.MethodPost, "/api/v1/items/item-1/counts", map[string]any{"stage": 2}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Details["quantity"])
}

func TestSerialHandler_ScanStatus(t *testing.T) {
	f := newFixture()
	changed := true
	f.serials.scanFn = func(_ context.Context, cmd application.RecordScanCommand) (*application.ScanResultDTO, error) {
		assert.Equal(t, "user-1", cmd.ScannedBy)
		return &application.ScanResultDTO{Changed: changed}, nil
	}
	body := map[string]any{"serialNumber": "SN-1", "stage": 1, "locationId": "LOC-1"}

	rec := f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/serials/scans", body, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	changed = false
	rec = f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/serials/scans", body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/serials/scans", map[string]any{"serialNumber": "SN 1", "stage": 1, "locationId": "LOC-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSerialHandler_Finalize(t *testing.T) {
	f := newFixture()
	f.serials.finalizeFn = func(_ context.Context, inventoryID string) (int, error) {
		if inventoryID != "inv-1" {
			return 0, errors.NewAppError("INVALID_TRANSITION", "unscanned serials are finalized once counting ends", http.StatusConflict)
		}
		return 3, nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/inventories/inv-1/serials/finalize", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			InventoryID string `json:"inventoryId"`
			NotFound    int    `json:"notFound"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inv-1", resp.Data.InventoryID)
	assert.Equal(t, 3, resp.Data.NotFound)

	rec = f.do(t, http.MethodPost, "/api/v1/inventories/inv-2/serials/finalize", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeError(t, rec).Code)
}
