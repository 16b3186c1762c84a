package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LedgerEntryCreatedEvent is raised when recognition produces a new entry
type LedgerEntryCreatedEvent struct {
	shared.BaseDomainEvent
	EntryID                uuid.UUID       `json:"entry_id"`
	ContractID             string          `json:"contract_id"`
	FieldID                string          `json:"field_id"`
	RemittanceID           string          `json:"remittance_id"`
	Phase                  Phase           `json:"phase"`
	CostOrigin             CostOrigin      `json:"cost_origin"`
	RecognizedWithOverhead decimal.Decimal `json:"recognized_with_overhead"`
	RecognitionDate        time.Time       `json:"recognition_date"`
}

// EventType returns the event type name
func (e *LedgerEntryCreatedEvent) EventType() string {
	return "LedgerEntryCreated"
}

// NewLedgerEntryCreatedEvent creates a new LedgerEntryCreatedEvent
func NewLedgerEntryCreatedEvent(entry *LedgerEntry) *LedgerEntryCreatedEvent {
	return &LedgerEntryCreatedEvent{
		BaseDomainEvent:        shared.NewBaseDomainEvent("LedgerEntryCreated", "LedgerEntry", entry.ID),
		EntryID:                entry.ID,
		ContractID:             entry.ContractID,
		FieldID:                entry.FieldID,
		RemittanceID:           entry.RemittanceID,
		Phase:                  entry.Phase,
		CostOrigin:             entry.CostOrigin,
		RecognizedWithOverhead: entry.Genesis.RecognizedWithOverhead,
		RecognitionDate:        entry.RecognitionDate,
	}
}

// CorrectionAppendedEvent is raised for every event appended to a
// correction log, forming the downstream accounting feed
type CorrectionAppendedEvent struct {
	shared.BaseDomainEvent
	EntryID        uuid.UUID      `json:"entry_id"`
	CorrectionID   uuid.UUID      `json:"correction_id"`
	CorrectionType CorrectionType `json:"correction_type"`
	Sequence       int            `json:"sequence"`
	EffectiveDate  time.Time      `json:"effective_date"`
}

// EventType returns the event type name
func (e *CorrectionAppendedEvent) EventType() string {
	return "CorrectionAppended"
}

// NewCorrectionAppendedEvent creates a new CorrectionAppendedEvent
func NewCorrectionAppendedEvent(entry *LedgerEntry, c *Correction) *CorrectionAppendedEvent {
	return &CorrectionAppendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CorrectionAppended", "LedgerEntry", entry.ID),
		EntryID:         entry.ID,
		CorrectionID:    c.ID,
		CorrectionType:  c.Type,
		Sequence:        c.Sequence,
		EffectiveDate:   c.EffectiveDate,
	}
}

// CorrectionDeactivatedEvent is raised when a correction is retracted
type CorrectionDeactivatedEvent struct {
	shared.BaseDomainEvent
	EntryID        uuid.UUID      `json:"entry_id"`
	CorrectionID   uuid.UUID      `json:"correction_id"`
	CorrectionType CorrectionType `json:"correction_type"`
}

// EventType returns the event type name
func (e *CorrectionDeactivatedEvent) EventType() string {
	return "CorrectionDeactivated"
}

// NewCorrectionDeactivatedEvent creates a new CorrectionDeactivatedEvent
func NewCorrectionDeactivatedEvent(entry *LedgerEntry, c *Correction) *CorrectionDeactivatedEvent {
	return &CorrectionDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CorrectionDeactivated", "LedgerEntry", entry.ID),
		EntryID:         entry.ID,
		CorrectionID:    c.ID,
		CorrectionType:  c.Type,
	}
}

// EntryFullyRecoveredEvent is raised when a recovery or compensating
// event reduces an entry's balance to exactly zero
type EntryFullyRecoveredEvent struct {
	shared.BaseDomainEvent
	EntryID      uuid.UUID       `json:"entry_id"`
	ContractID   string          `json:"contract_id"`
	FieldID      string          `json:"field_id"`
	TotalRecovered decimal.Decimal `json:"total_recovered"`
}

// EventType returns the event type name
func (e *EntryFullyRecoveredEvent) EventType() string {
	return "EntryFullyRecovered"
}

// NewEntryFullyRecoveredEvent creates a new EntryFullyRecoveredEvent
func NewEntryFullyRecoveredEvent(entry *LedgerEntry) *EntryFullyRecoveredEvent {
	return &EntryFullyRecoveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("EntryFullyRecovered", "LedgerEntry", entry.ID),
		EntryID:         entry.ID,
		ContractID:      entry.ContractID,
		FieldID:         entry.FieldID,
		TotalRecovered:  entry.CurrentState().TotalRecovered,
	}
}
