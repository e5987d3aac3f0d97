package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equitysync/internal/model"
	"equitysync/internal/service"
	"equitysync/internal/utils"
)

// SyncHandler handles sync run HTTP requests
type SyncHandler struct {
	syncService *service.SyncService
	logger      *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// StartRun handles launching a sync run for one market
// POST /api/v1/sync/runs
func (h *SyncHandler) StartRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	id, err := h.syncService.StartRun(req)
	if err != nil {
		h.logger.Warn("Rejected sync run request",
			zap.String("market", req.Market),
			zap.Error(err))
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

// GetRun handles retrieving one run's progress
// GET /api/v1/sync/runs/:id
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid run ID")
		return
	}

	status, ok := h.syncService.GetRun(id)
	if !ok {
		utils.SendErrorResponse(c, http.StatusNotFound, "Run not found")
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListRuns handles retrieving all runs, newest first
// GET /api/v1/sync/runs
func (h *SyncHandler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.syncService.ListRuns()})
}
