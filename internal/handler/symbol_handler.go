package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equitysync/internal/model"
	"equitysync/internal/utils"
)

// SymbolStore reads the symbol catalog out of the warehouse.
type SymbolStore interface {
	GetByMarket(ctx context.Context, marketID string) ([]model.SymbolRecord, error)
}

// SymbolHandler handles symbol catalog HTTP requests
type SymbolHandler struct {
	symbols SymbolStore
	logger  *zap.Logger
}

// NewSymbolHandler creates a new symbol handler
func NewSymbolHandler(symbols SymbolStore, logger *zap.Logger) *SymbolHandler {
	return &SymbolHandler{
		symbols: symbols,
		logger:  logger,
	}
}

// GetSymbols handles retrieving the catalog for a market with filtering,
// pagination and sorting
// GET /api/v1/symbols?market=hk-share
func (h *SymbolHandler) GetSymbols(c *gin.Context) {
	marketID := c.Query("market")
	if marketID == "" {
		utils.SendErrorResponse(c, http.StatusBadRequest, "market query parameter is required")
		return
	}

	searchTerm := strings.ToUpper(c.Query("search"))
	sortDirection := utils.NormalizeSortDirection(c.DefaultQuery("sort_direction", "ASC"))
	params := utils.ParsePaginationParams(c, 50, 500)

	records, err := h.symbols.GetByMarket(c.Request.Context(), marketID)
	if err != nil {
		h.logger.Error("Failed to get symbols", zap.String("market", marketID), zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve symbols")
		return
	}

	if searchTerm != "" {
		filtered := records[:0]
		for _, rec := range records {
			if strings.Contains(rec.Symbol, searchTerm) || strings.Contains(strings.ToUpper(rec.Name), searchTerm) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if sortDirection == "DESC" {
		sort.Slice(records, func(i, j int) bool { return records[i].Symbol > records[j].Symbol })
	}

	total := len(records)
	offset := (params.Page - 1) * params.Limit
	if offset > total {
		offset = total
	}
	end := offset + params.Limit
	if end > total {
		end = total
	}

	utils.SendPaginatedResponse(c, http.StatusOK, records[offset:end], total, params.Page, params.Limit)
}
