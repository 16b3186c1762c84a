package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgpp/costrecovery/internal/application/correction"
	"github.com/sgpp/costrecovery/internal/application/recovery"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
)

// BatchHandler exposes manual triggers for the monthly batches. The
// scheduler drives the normal cadence; these endpoints exist for
// reprocessing and operational intervention. Both batches are
// idempotent per period, so a duplicate trigger is a no-op.
type BatchHandler struct {
	BaseHandler
	corrections *correction.Service
	recoveries  *recovery.Service
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(corrections *correction.Service, recoveries *recovery.Service) *BatchHandler {
	return &BatchHandler{corrections: corrections, recoveries: recoveries}
}

// RegisterRoutes registers the batch trigger routes
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	batch := rg.Group("/batch")
	{
		batch.POST("/corrections", h.RunCorrection)
		batch.POST("/recoveries", h.RunRecovery)
	}
}

// CorrectionRunRequest selects the as-of instant for a correction run.
// When omitted, the run uses the current time.
type CorrectionRunRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// RunCorrection runs the annual monetary correction batch
func (h *BatchHandler) RunCorrection(c *gin.Context) {
	var req CorrectionRunRequest
	// An empty body means "run now"
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
			return
		}
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	report, err := h.corrections.RunMonthlyCorrection(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// RecoveryRunRequest selects the contract/field/period for a recovery
// allocation pass
type RecoveryRunRequest struct {
	ContractID string `json:"contract_id" binding:"required"`
	FieldID    string `json:"field_id" binding:"required"`
	Year       int    `json:"year" binding:"required"`
	Month      int    `json:"month" binding:"required,min=1,max=12"`
}

// RunRecovery runs the recovery allocation pass for one field
func (h *BatchHandler) RunRecovery(c *gin.Context) {
	var req RecoveryRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	period := ledger.NewPeriod(req.Year, time.Month(req.Month))
	report, err := h.recoveries.RunMonthlyRecovery(c.Request.Context(), req.ContractID, req.FieldID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
