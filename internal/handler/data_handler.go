package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equitysync/internal/model"
	"equitysync/internal/repository"
	"equitysync/internal/utils"
)

// BarStore reads price bars and warehouse inventory.
type BarStore interface {
	GetBars(ctx context.Context, symbol, startDate, endDate string, limit int) ([]model.PriceBar, error)
	Inventory(ctx context.Context) ([]repository.InventoryItem, error)
}

// DataHandler handles price data HTTP requests
type DataHandler struct {
	bars   BarStore
	logger *zap.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(bars BarStore, logger *zap.Logger) *DataHandler {
	return &DataHandler{
		bars:   bars,
		logger: logger,
	}
}

// GetBars handles retrieving daily bars for one symbol
// GET /api/v1/symbols/:symbol/bars?start=2024-01-01&end=2024-06-30&limit=500
func (h *DataHandler) GetBars(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		utils.SendErrorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	params := utils.ParsePaginationParams(c, 500, 5000)

	bars, err := h.bars.GetBars(c.Request.Context(), symbol, c.Query("start"), c.Query("end"), params.Limit)
	if err != nil {
		h.logger.Error("Failed to get bars", zap.String("symbol", symbol), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve price data")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bars, "count": len(bars)})
}

// GetInventory handles retrieving per-market warehouse coverage
// GET /api/v1/inventory
func (h *DataHandler) GetInventory(c *gin.Context) {
	items, err := h.bars.Inventory(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get inventory", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve inventory")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
