package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/sgpp/costrecovery/internal/application/ledger"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// LedgerHandler handles the ledger entry API endpoints
type LedgerHandler struct {
	BaseHandler
	service *ledgerapp.Service
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *ledgerapp.Service) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// RegisterRoutes registers the ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	entries := rg.Group("/entries")
	{
		entries.POST("", h.RegisterRecognition)
		entries.GET("/:id", h.GetEntry)
		entries.GET("/:id/corrections", h.GetCorrectionFeed)
		entries.POST("/:id/adjustments", h.ManualAdjust)
		entries.DELETE("/:id/corrections/:correctionId", h.DeactivateCorrection)
	}
	rg.POST("/transfers", h.Transfer)
}

// RecognitionRequest is the payload for registering a recognition result
type RecognitionRequest struct {
	ContractID   string `json:"contract_id" binding:"required"`
	FieldID      string `json:"field_id" binding:"required"`
	RemittanceID string `json:"remittance_id" binding:"required"`
	Phase        string `json:"phase" binding:"required"`

	CostOrigin   string `json:"cost_origin" binding:"required"`
	SharingGroup string `json:"sharing_group"`

	RecognitionDate time.Time `json:"recognition_date" binding:"required"`

	TotalLaunched  decimal.Decimal `json:"total_launched"`
	RecognizedBase decimal.Decimal `json:"recognized_base" binding:"required"`
	Unrecognized   decimal.Decimal `json:"unrecognized"`
	NonRecoverable decimal.Decimal `json:"non_recoverable"`

	ExplorationBase  decimal.Decimal `json:"exploration_base"`
	ProductionBase   decimal.Decimal `json:"production_base"`
	CumulativeVolume decimal.Decimal `json:"cumulative_volume"`
}

// EntryResponse is the wire representation of a ledger entry together
// with its fold-derived current state
type EntryResponse struct {
	*ledger.LedgerEntry
	State ledger.Snapshot `json:"state"`
}

// RegisterRecognition creates the genesis state of a ledger entry from
// a recognition result
func (h *LedgerHandler) RegisterRecognition(c *gin.Context) {
	var req RecognitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	entry, err := h.service.RegisterRecognition(c.Request.Context(), ledgerapp.RecognitionInput{
		ContractID:       req.ContractID,
		FieldID:          req.FieldID,
		RemittanceID:     req.RemittanceID,
		Phase:            ledger.Phase(req.Phase),
		CostOrigin:       ledger.CostOrigin(req.CostOrigin),
		SharingGroup:     req.SharingGroup,
		RecognitionDate:  req.RecognitionDate,
		TotalLaunched:    req.TotalLaunched,
		RecognizedBase:   req.RecognizedBase,
		Unrecognized:     req.Unrecognized,
		NonRecoverable:   req.NonRecoverable,
		ExplorationBase:  req.ExplorationBase,
		ProductionBase:   req.ProductionBase,
		CumulativeVolume: req.CumulativeVolume,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, EntryResponse{LedgerEntry: entry, State: entry.CurrentState()})
}

// GetEntry returns an entry with its current state
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	entryID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}

	entry, state, err := h.service.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, EntryResponse{LedgerEntry: entry, State: state})
}

// GetCorrectionFeed returns the entry's correction events in fold
// order, retracted events included
func (h *LedgerHandler) GetCorrectionFeed(c *gin.Context) {
	entryID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}

	feed, err := h.service.CorrectionFeed(c.Request.Context(), entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, feed)
}

// ManualAdjustRequest is the payload for a manual value adjustment
type ManualAdjustRequest struct {
	Delta         decimal.Decimal `json:"delta" binding:"required"`
	Note          string          `json:"note" binding:"required"`
	EffectiveDate time.Time       `json:"effective_date" binding:"required"`
}

// ManualAdjust appends an audited manual adjustment to an entry
func (h *LedgerHandler) ManualAdjust(c *gin.Context) {
	entryID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req ManualAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	entry, err := h.service.ManualAdjust(c.Request.Context(), entryID, req.Delta, req.Note, req.EffectiveDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, EntryResponse{LedgerEntry: entry, State: entry.CurrentState()})
}

// DeactivateCorrection retracts an erroneous correction event
func (h *LedgerHandler) DeactivateCorrection(c *gin.Context) {
	entryID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}
	correctionID, ok := h.parseID(c, c.Param("correctionId"))
	if !ok {
		return
	}

	entry, err := h.service.DeactivateCorrection(c.Request.Context(), entryID, correctionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, EntryResponse{LedgerEntry: entry, State: entry.CurrentState()})
}

// TransferRequest is the payload for a partial-invalidation transfer
type TransferRequest struct {
	SourceEntryID string          `json:"source_entry_id" binding:"required,uuid"`
	TargetEntryID string          `json:"target_entry_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	EffectiveDate time.Time       `json:"effective_date" binding:"required"`
}

// TransferResponse carries the correlation ID shared by both legs
type TransferResponse struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
}

// Transfer moves value between two entries as a conserved pair of
// correction events
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	sourceID, _ := uuid.Parse(req.SourceEntryID)
	targetID, _ := uuid.Parse(req.TargetEntryID)

	correlation, err := h.service.Transfer(c.Request.Context(), sourceID, targetID, req.Amount, req.EffectiveDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, TransferResponse{CorrelationID: correlation})
}

// parseID parses a UUID path parameter, responding with 400 on failure
func (h *LedgerHandler) parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "invalid UUID in path: "+raw)
		return uuid.Nil, false
	}
	return id, true
}
