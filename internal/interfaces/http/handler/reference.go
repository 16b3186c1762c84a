package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// RateStore persists published index rates
type RateStore interface {
	indexes.Resolver
	Save(ctx context.Context, rate indexes.Rate) error
}

// ReportStore persists filed production reports
type ReportStore interface {
	production.Source
	Save(ctx context.Context, report production.Report) error
}

// ReferenceHandler manages the reference data the batches consume:
// monthly index rates and production reports
type ReferenceHandler struct {
	BaseHandler
	rates   RateStore
	reports ReportStore
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(rates RateStore, reports ReportStore) *ReferenceHandler {
	return &ReferenceHandler{rates: rates, reports: reports}
}

// RegisterRoutes registers the reference data routes
func (h *ReferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/index-rates", h.UpsertIndexRate)
	rg.GET("/index-rates/:kind/:year/:month", h.GetIndexRate)
	rg.PUT("/production-reports", h.UpsertProductionReport)
}

// IndexRateRequest is the payload for publishing a monthly index value
type IndexRateRequest struct {
	Kind    string          `json:"kind" binding:"required"`
	Year    int             `json:"year" binding:"required"`
	Month   int             `json:"month" binding:"required,min=1,max=12"`
	Percent decimal.Decimal `json:"percent" binding:"required"`
}

// UpsertIndexRate publishes the index value for a reference month
func (h *ReferenceHandler) UpsertIndexRate(c *gin.Context) {
	var req IndexRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	kind := indexes.Kind(req.Kind)
	if !kind.IsValid() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "index kind must be IPCA or IGPM")
		return
	}

	rate := indexes.Rate{
		Kind:    kind,
		Year:    req.Year,
		Month:   time.Month(req.Month),
		Percent: req.Percent,
	}
	if err := h.rates.Save(c.Request.Context(), rate); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rate)
}

// GetIndexRate returns the published index value for a reference month
func (h *ReferenceHandler) GetIndexRate(c *gin.Context) {
	kind := indexes.Kind(c.Param("kind"))
	if !kind.IsValid() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "index kind must be IPCA or IGPM")
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "invalid year")
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "invalid month")
		return
	}

	rate, err := h.rates.Resolve(c.Request.Context(), kind, year, time.Month(month))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rate)
}

// ProductionReportRequest is the payload for filing a monthly
// production report
type ProductionReportRequest struct {
	ContractID string          `json:"contract_id" binding:"required"`
	FieldID    string          `json:"field_id" binding:"required"`
	Year       int             `json:"year" binding:"required"`
	Month      int             `json:"month" binding:"required,min=1,max=12"`
	Volume     decimal.Decimal `json:"volume"`
	Capacity   decimal.Decimal `json:"capacity"`
}

// UpsertProductionReport files a field's production report for a period
func (h *ReferenceHandler) UpsertProductionReport(c *gin.Context) {
	var req ProductionReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	if req.Capacity.IsNegative() || req.Volume.IsNegative() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "volume and capacity cannot be negative")
		return
	}

	report := production.Report{
		ContractID: req.ContractID,
		FieldID:    req.FieldID,
		Period:     ledger.NewPeriod(req.Year, time.Month(req.Month)),
		Volume:     req.Volume,
		Capacity:   req.Capacity,
	}
	if err := h.reports.Save(c.Request.Context(), report); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
