package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// LedgerEntryModel is the persistence model for the LedgerEntry
// aggregate root. The four-column unique index enforces the
// one-entry-per-(contract, field, remittance, phase) invariant at the
// storage layer as well.
type LedgerEntryModel struct {
	AggregateModel
	ContractID   string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_entry_key,priority:1;index:idx_entry_field,priority:1"`
	FieldID      string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_entry_key,priority:2;index:idx_entry_field,priority:2"`
	RemittanceID string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_entry_key,priority:3"`
	Phase        ledger.Phase      `gorm:"type:varchar(3);not null;uniqueIndex:idx_entry_key,priority:4"`
	CostOrigin   ledger.CostOrigin `gorm:"type:varchar(20);not null;index"`
	SharingGroup string            `gorm:"type:varchar(50);index"`

	RecognitionDate time.Time `gorm:"not null;index"`

	TotalLaunched          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RecognizedBase         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RecognizedWithOverhead decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unrecognized           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Recoverable            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NonRecoverable         decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	OverheadExploration decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OverheadProduction  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OverheadTotal       decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	FullyRecovered bool `gorm:"not null;default:false;index"`

	Corrections []CorrectionModel `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *ledger.LedgerEntry {
	entry := &ledger.LedgerEntry{
		ContractID:      m.ContractID,
		FieldID:         m.FieldID,
		RemittanceID:    m.RemittanceID,
		Phase:           m.Phase,
		CostOrigin:      m.CostOrigin,
		SharingGroup:    m.SharingGroup,
		RecognitionDate: m.RecognitionDate,
		Genesis: ledger.GenesisAmounts{
			TotalLaunched:          m.TotalLaunched,
			RecognizedBase:         m.RecognizedBase,
			RecognizedWithOverhead: m.RecognizedWithOverhead,
			Unrecognized:           m.Unrecognized,
			Recoverable:            m.Recoverable,
			NonRecoverable:         m.NonRecoverable,
		},
		Overhead: ledger.OverheadBreakdown{
			Exploration: m.OverheadExploration,
			Production:  m.OverheadProduction,
			Total:       m.OverheadTotal,
		},
		FullyRecovered: m.FullyRecovered,
		Corrections:    make([]ledger.Correction, len(m.Corrections)),
	}
	m.PopulateAggregateRoot(&entry.BaseAggregateRoot)
	for i := range m.Corrections {
		entry.Corrections[i] = *m.Corrections[i].ToDomain()
	}
	return entry
}

// FromDomain populates the persistence model from a domain LedgerEntry
func (m *LedgerEntryModel) FromDomain(e *ledger.LedgerEntry) {
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	m.ContractID = e.ContractID
	m.FieldID = e.FieldID
	m.RemittanceID = e.RemittanceID
	m.Phase = e.Phase
	m.CostOrigin = e.CostOrigin
	m.SharingGroup = e.SharingGroup
	m.RecognitionDate = e.RecognitionDate
	m.TotalLaunched = e.Genesis.TotalLaunched
	m.RecognizedBase = e.Genesis.RecognizedBase
	m.RecognizedWithOverhead = e.Genesis.RecognizedWithOverhead
	m.Unrecognized = e.Genesis.Unrecognized
	m.Recoverable = e.Genesis.Recoverable
	m.NonRecoverable = e.Genesis.NonRecoverable
	m.OverheadExploration = e.Overhead.Exploration
	m.OverheadProduction = e.Overhead.Production
	m.OverheadTotal = e.Overhead.Total
	m.FullyRecovered = e.FullyRecovered
	m.Corrections = make([]CorrectionModel, len(e.Corrections))
	for i := range e.Corrections {
		m.Corrections[i].FromDomain(&e.Corrections[i])
	}
}

// LedgerEntryModelFromDomain creates a new persistence model from a
// domain LedgerEntry
func LedgerEntryModelFromDomain(e *ledger.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// CorrectionModel is the persistence model for one correction event.
// Rows are insert-only except for the active flag; the per-entry
// sequence is unique so the log order is stable under reload.
type CorrectionModel struct {
	ID       uuid.UUID             `gorm:"type:uuid;primary_key"`
	EntryID  uuid.UUID             `gorm:"type:uuid;not null;index;uniqueIndex:idx_correction_entry_seq,priority:1"`
	Type     ledger.CorrectionType `gorm:"type:varchar(20);not null;index"`
	Sequence int                   `gorm:"not null;uniqueIndex:idx_correction_entry_seq,priority:2"`
	Active   bool                  `gorm:"not null;default:true;index"`
	Backfill bool                  `gorm:"not null;default:false"`

	EffectiveDate time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`

	IndexKind        indexes.Kind    `gorm:"type:varchar(10)"`
	Rate             decimal.Decimal `gorm:"type:decimal(18,10);not null"`
	AccumulatedIndex decimal.Decimal `gorm:"type:decimal(18,10);not null"`
	AccumulatedValue decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	ValueDelta decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	AmountRecovered      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalRecoveredToDate decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	FundedBy             string          `gorm:"type:varchar(101)"`

	Note string `gorm:"type:text"`

	TargetEntryID *uuid.UUID               `gorm:"type:uuid;index"`
	CorrelationID *uuid.UUID               `gorm:"type:uuid;index"`
	Direction     ledger.TransferDirection `gorm:"type:varchar(3)"`
	Amount        decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (CorrectionModel) TableName() string {
	return "ledger_corrections"
}

// ToDomain converts the persistence model to a domain Correction
func (m *CorrectionModel) ToDomain() *ledger.Correction {
	return &ledger.Correction{
		ID:                   m.ID,
		EntryID:              m.EntryID,
		Type:                 m.Type,
		Sequence:             m.Sequence,
		Active:               m.Active,
		Backfill:             m.Backfill,
		EffectiveDate:        m.EffectiveDate,
		CreatedAt:            m.CreatedAt,
		IndexKind:            m.IndexKind,
		Rate:                 m.Rate,
		AccumulatedIndex:     m.AccumulatedIndex,
		AccumulatedValue:     m.AccumulatedValue,
		ValueDelta:           m.ValueDelta,
		AmountRecovered:      m.AmountRecovered,
		TotalRecoveredToDate: m.TotalRecoveredToDate,
		FundedBy:             m.FundedBy,
		Note:                 m.Note,
		TargetEntryID:        m.TargetEntryID,
		CorrelationID:        m.CorrelationID,
		Direction:            m.Direction,
		Amount:               m.Amount,
	}
}

// FromDomain populates the persistence model from a domain Correction
func (m *CorrectionModel) FromDomain(c *ledger.Correction) {
	m.ID = c.ID
	m.EntryID = c.EntryID
	m.Type = c.Type
	m.Sequence = c.Sequence
	m.Active = c.Active
	m.Backfill = c.Backfill
	m.EffectiveDate = c.EffectiveDate
	m.CreatedAt = c.CreatedAt
	m.IndexKind = c.IndexKind
	m.Rate = c.Rate
	m.AccumulatedIndex = c.AccumulatedIndex
	m.AccumulatedValue = c.AccumulatedValue
	m.ValueDelta = c.ValueDelta
	m.AmountRecovered = c.AmountRecovered
	m.TotalRecoveredToDate = c.TotalRecoveredToDate
	m.FundedBy = c.FundedBy
	m.Note = c.Note
	m.TargetEntryID = c.TargetEntryID
	m.CorrelationID = c.CorrelationID
	m.Direction = c.Direction
	m.Amount = c.Amount
}
