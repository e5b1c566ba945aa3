package handlers

import (
	"time"

	"github.com/wms-platform/stockcount-service/internal/application"
)

type stockLineRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	ProductCode string `json:"productCode" binding:"required,product_code"`
	CategoryID  string `json:"categoryId"`
	LocationID  string `json:"locationId" binding:"required,location_id"`
	Quantity    *int   `json:"quantity" binding:"omitempty,gte=0"`
}

type createInventoryRequest struct {
	Code                  string             `json:"code" binding:"required,max=64"`
	Description           string             `json:"description" binding:"max=500"`
	Type                  string             `json:"type" binding:"required,oneof=general cyclic targeted"`
	LocationIDs           []string           `json:"locationIds" binding:"dive,location_id"`
	CategoryIDs           []string           `json:"categoryIds"`
	ProductIDs            []string           `json:"productIds"`
	BlocksSystemMovements bool               `json:"blocksSystemMovements"`
	PredictedEndDate      *time.Time         `json:"predictedEndDate"`
	Snapshot              []stockLineRequest `json:"snapshot" binding:"dive"`
}

func (r createInventoryRequest) toCommand(actor string) application.CreateInventoryCommand {
	snapshot := make([]application.StockLineInput, 0, len(r.Snapshot))
	for _, line := range r.Snapshot {
		snapshot = append(snapshot, application.StockLineInput{
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			CategoryID:  line.CategoryID,
			LocationID:  line.LocationID,
			Quantity:    line.Quantity,
		})
	}
	return application.CreateInventoryCommand{
		Code:                  r.Code,
		Description:           r.Description,
		Type:                  r.Type,
		LocationIDs:           r.LocationIDs,
		CategoryIDs:           r.CategoryIDs,
		ProductIDs:            r.ProductIDs,
		BlocksSystemMovements: r.BlocksSystemMovements,
		PredictedEndDate:      r.PredictedEndDate,
		Snapshot:              snapshot,
		CreatedBy:             actor,
	}
}

type cancelInventoryRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type recordCountRequest struct {
	Stage    int  `json:"stage" binding:"required,count_stage"`
	Quantity *int `json:"quantity" binding:"required"`
}

type expectedSerialRequest struct {
	SerialNumber string `json:"serialNumber" binding:"required,serial_number"`
	ProductID    string `json:"productId"`
	LocationID   string `json:"locationId" binding:"omitempty,location_id"`
}

type initializeSerialsRequest struct {
	Serials []expectedSerialRequest `json:"serials" binding:"required,min=1,dive"`
}

func (r initializeSerialsRequest) toCommand(inventoryID, actor string) application.InitializeSerialsCommand {
	serials := make([]application.ExpectedSerialInput, 0, len(r.Serials))
	for _, s := range r.Serials {
		serials = append(serials, application.ExpectedSerialInput{
			SerialNumber: s.SerialNumber,
			ProductID:    s.ProductID,
			LocationID:   s.LocationID,
		})
	}
	return application.InitializeSerialsCommand{InventoryID: inventoryID, Serials: serials, Actor: actor}
}

type recordScanRequest struct {
	SerialNumber string `json:"serialNumber" binding:"required,serial_number"`
	ProductID    string `json:"productId"`
	Stage        int    `json:"stage" binding:"required,count_round"`
	LocationID   string `json:"locationId" binding:"required,location_id"`
}

type resolveSerialRequest struct {
	Notes string `json:"notes" binding:"required,max=1000"`
}
