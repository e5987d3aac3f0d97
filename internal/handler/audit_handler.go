package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equitysync/internal/model"
	"equitysync/internal/utils"
)

// AuditStore reads the append-only run history.
type AuditStore interface {
	ListRecent(ctx context.Context, limit int) ([]model.AuditRun, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	audits AuditStore
	logger *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audits AuditStore, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audits: audits,
		logger: logger,
	}
}

// ListAuditRuns handles retrieving recent run summaries, newest first
// GET /api/v1/audit?limit=20
func (h *AuditHandler) ListAuditRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.audits.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get audit runs", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve audit log")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}
