package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/shopspring/decimal"
)

// CorrectionType is the closed set of correction event variants. The
// fold switches exhaustively over it; unknown values are an error, not
// a silently ignored record.
type CorrectionType string

const (
	CorrectionTypeIndex    CorrectionType = "INDEX"
	CorrectionTypeRecovery CorrectionType = "RECOVERY"
	CorrectionTypeManual   CorrectionType = "MANUAL_ADJUSTMENT"
	CorrectionTypeTransfer CorrectionType = "TRANSFER"
)

// IsValid checks if the correction type is a known variant
func (t CorrectionType) IsValid() bool {
	switch t {
	case CorrectionTypeIndex, CorrectionTypeRecovery, CorrectionTypeManual, CorrectionTypeTransfer:
		return true
	}
	return false
}

// String returns the string representation of the correction type
func (t CorrectionType) String() string {
	return string(t)
}

// TransferDirection marks which side of a partial-invalidation transfer
// a correction records
type TransferDirection string

const (
	TransferOut TransferDirection = "OUT"
	TransferIn  TransferDirection = "IN"
)

// IsValid checks if the direction is a known transfer side
func (d TransferDirection) IsValid() bool {
	return d == TransferOut || d == TransferIn
}

// Correction is one event in a ledger entry's append-only correction
// log. Variant-specific fields are populated according to Type; the
// audit fields (Active, EffectiveDate, CreatedAt, Sequence) are common
// to every variant. Events are never mutated or reordered in place:
// erroneous corrections are retracted by flipping Active to false.
type Correction struct {
	ID       uuid.UUID      `json:"id"`
	EntryID  uuid.UUID      `json:"entry_id"`
	Type     CorrectionType `json:"type"`
	Sequence int            `json:"sequence"` // assigned on append, strictly increasing per entry
	Active   bool           `json:"active"`
	Backfill bool           `json:"backfill"` // explicit flag for historical backfills that precede the log head

	EffectiveDate time.Time `json:"effective_date"`
	CreatedAt     time.Time `json:"created_at"`

	// INDEX fields
	IndexKind        indexes.Kind    `json:"index_kind,omitempty"`
	Rate             decimal.Decimal `json:"rate"`              // decimal fraction applied to the running balance
	AccumulatedIndex decimal.Decimal `json:"accumulated_index"` // running sum of applied rates at append time
	AccumulatedValue decimal.Decimal `json:"accumulated_value"` // running sum of index deltas at append time

	// INDEX / MANUAL_ADJUSTMENT delta against the running balance
	ValueDelta decimal.Decimal `json:"value_delta"`

	// RECOVERY fields. FundedBy records the contract/field whose
	// monthly capacity funded the event; shared-group entries receive
	// recoveries funded by other fields, so the attribution cannot be
	// derived from the entry itself.
	AmountRecovered      decimal.Decimal `json:"amount_recovered"`
	TotalRecoveredToDate decimal.Decimal `json:"total_recovered_to_date"`
	FundedBy             string          `json:"funded_by,omitempty"`

	// MANUAL_ADJUSTMENT note
	Note string `json:"note,omitempty"`

	// TRANSFER fields. CorrelationID is shared by the OUT and IN sides
	// so the pair can always be cross-verified as a conserved transfer.
	TargetEntryID *uuid.UUID        `json:"target_entry_id,omitempty"`
	CorrelationID *uuid.UUID        `json:"correlation_id,omitempty"`
	Direction     TransferDirection `json:"direction,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
}

// NewIndexCorrection builds an annual inflation correction event
func NewIndexCorrection(kind indexes.Kind, rate decimal.Decimal, valueDelta decimal.Decimal, effectiveDate time.Time) Correction {
	return Correction{
		ID:            uuid.New(),
		Type:          CorrectionTypeIndex,
		IndexKind:     kind,
		Rate:          rate,
		ValueDelta:    valueDelta,
		EffectiveDate: effectiveDate,
		CreatedAt:     time.Now(),
	}
}

// NewRecovery builds a production-funded recovery event. A negative
// amount records the compensation of a negative balance.
func NewRecovery(amount decimal.Decimal, effectiveDate time.Time) Correction {
	return Correction{
		ID:              uuid.New(),
		Type:            CorrectionTypeRecovery,
		AmountRecovered: amount,
		EffectiveDate:   effectiveDate,
		CreatedAt:       time.Now(),
	}
}

// NewManualAdjustment builds a manual value adjustment with an audit note
func NewManualAdjustment(delta decimal.Decimal, note string, effectiveDate time.Time) Correction {
	return Correction{
		ID:            uuid.New(),
		Type:          CorrectionTypeManual,
		ValueDelta:    delta,
		Note:          note,
		EffectiveDate: effectiveDate,
		CreatedAt:     time.Now(),
	}
}

// NewTransferLeg builds one side of a partial-invalidation transfer
func NewTransferLeg(direction TransferDirection, counterpart uuid.UUID, correlation uuid.UUID, amount decimal.Decimal, effectiveDate time.Time) Correction {
	target := counterpart
	corr := correlation
	return Correction{
		ID:            uuid.New(),
		Type:          CorrectionTypeTransfer,
		Direction:     direction,
		TargetEntryID: &target,
		CorrelationID: &corr,
		Amount:        amount,
		EffectiveDate: effectiveDate,
		CreatedAt:     time.Now(),
	}
}
