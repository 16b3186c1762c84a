package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CostOrigin classifies how an entry's recovery is funded: directly
// from the owning field's capacity, or prorated across a sharing group.
type CostOrigin string

const (
	CostOriginExclusive       CostOrigin = "EXCLUSIVE"
	CostOriginSharedReservoir CostOrigin = "SHARED_RESERVOIR"
	CostOriginSharedAsset     CostOrigin = "SHARED_ASSET"
	CostOriginSharedAEGV      CostOrigin = "SHARED_AEGV"
)

// IsValid checks if the cost origin is a known classification
func (o CostOrigin) IsValid() bool {
	switch o {
	case CostOriginExclusive, CostOriginSharedReservoir, CostOriginSharedAsset, CostOriginSharedAEGV:
		return true
	}
	return false
}

// IsShared returns true for origins recovered via proportional allocation
func (o CostOrigin) IsShared() bool {
	return o.IsValid() && o != CostOriginExclusive
}

// String returns the string representation of the cost origin
func (o CostOrigin) String() string {
	return string(o)
}

// EntryKey is the natural identity of a ledger entry. Exactly one
// entry exists per key; a second recognition for the same key is a
// DUPLICATE_LEDGER_ENTRY.
type EntryKey struct {
	ContractID   string
	FieldID      string
	RemittanceID string
	Phase        Phase
}

// String renders the key for logs and error messages
func (k EntryKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.ContractID, k.FieldID, k.RemittanceID, k.Phase)
}

// GenesisAmounts are the reconciled amounts produced by recognition.
// They seed the fold and are immutable afterwards; all later movement
// lives in the correction log.
type GenesisAmounts struct {
	TotalLaunched          decimal.Decimal
	RecognizedBase         decimal.Decimal
	RecognizedWithOverhead decimal.Decimal
	Unrecognized           decimal.Decimal
	Recoverable            decimal.Decimal
	NonRecoverable         decimal.Decimal
}

// OverheadBreakdown carries the tiered overhead charge folded into the
// recognized amount at entry creation
type OverheadBreakdown struct {
	Exploration decimal.Decimal
	Production  decimal.Decimal
	Total       decimal.Decimal
}

// LedgerEntry is the CCO aggregate root: one ledger record per
// (contract, field, remittance, phase) consolidating recognized
// expenditure. It is never physically deleted; a fully-recovered entry
// remains as a permanent audit record.
type LedgerEntry struct {
	shared.BaseAggregateRoot
	ContractID   string `json:"contract_id"`
	FieldID      string `json:"field_id"`
	RemittanceID string `json:"remittance_id"`
	Phase        Phase  `json:"phase"`

	CostOrigin   CostOrigin `json:"cost_origin"`
	SharingGroup string     `json:"sharing_group,omitempty"` // reservoir/asset/AEGV code for SHARED_* origins

	RecognitionDate time.Time `json:"recognition_date"` // immutable, set at creation

	Genesis  GenesisAmounts    `json:"genesis"`
	Overhead OverheadBreakdown `json:"overhead"`

	// FullyRecovered caches the fold-derived terminal flag for query
	// efficiency. AppendCorrection and DeactivateCorrection refresh it;
	// it must always equal CurrentState().FullyRecovered.
	FullyRecovered bool `json:"fully_recovered"`

	Corrections []Correction `json:"corrections"`
}

// NewLedgerEntry creates the genesis state of a ledger entry once
// recognition completes for a phase
func NewLedgerEntry(
	key EntryKey,
	origin CostOrigin,
	sharingGroup string,
	recognitionDate time.Time,
	genesis GenesisAmounts,
	overhead OverheadBreakdown,
) (*LedgerEntry, error) {
	if key.ContractID == "" {
		return nil, shared.NewDomainError("INVALID_CONTRACT", "Contract ID cannot be empty")
	}
	if key.FieldID == "" {
		return nil, shared.NewDomainError("INVALID_FIELD", "Field ID cannot be empty")
	}
	if key.RemittanceID == "" {
		return nil, shared.NewDomainError("INVALID_REMITTANCE", "Remittance ID cannot be empty")
	}
	if !key.Phase.IsValid() {
		return nil, shared.ErrInvalidPhaseTransition
	}
	if !origin.IsValid() {
		return nil, shared.NewDomainError("INVALID_COST_ORIGIN", fmt.Sprintf("unknown cost origin %q", origin))
	}
	if origin.IsShared() && sharingGroup == "" {
		return nil, shared.NewDomainError("INVALID_SHARING_GROUP", "Shared cost origin requires a sharing group")
	}
	if recognitionDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_RECOGNITION_DATE", "Recognition date cannot be zero")
	}

	e := &LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ContractID:        key.ContractID,
		FieldID:           key.FieldID,
		RemittanceID:      key.RemittanceID,
		Phase:             key.Phase,
		CostOrigin:        origin,
		SharingGroup:      sharingGroup,
		RecognitionDate:   recognitionDate,
		Genesis:           genesis,
		Overhead:          overhead,
		Corrections:       make([]Correction, 0),
	}

	e.AddDomainEvent(NewLedgerEntryCreatedEvent(e))

	return e, nil
}

// Key returns the natural identity of the entry
func (e *LedgerEntry) Key() EntryKey {
	return EntryKey{
		ContractID:   e.ContractID,
		FieldID:      e.FieldID,
		RemittanceID: e.RemittanceID,
		Phase:        e.Phase,
	}
}

// latestActiveEffectiveDate returns the effective date of the most
// recent active correction, or false when the log has no active events
func (e *LedgerEntry) latestActiveEffectiveDate() (time.Time, bool) {
	var latest time.Time
	found := false
	for i := range e.Corrections {
		c := &e.Corrections[i]
		if !c.Active {
			continue
		}
		if !found || c.EffectiveDate.After(latest) {
			latest = c.EffectiveDate
			found = true
		}
	}
	return latest, found
}

// AppendCorrection appends a new correction event to the log. The
// effective date must not precede the latest active event's effective
// date unless the event is explicitly flagged as a historical backfill;
// out-of-order appends are rejected, never silently reordered.
func (e *LedgerEntry) AppendCorrection(c Correction) error {
	if !c.Type.IsValid() {
		return shared.NewDomainError("INVALID_CORRECTION_TYPE", fmt.Sprintf("unknown correction type %q", c.Type))
	}
	if c.EffectiveDate.IsZero() {
		return shared.NewDomainError("INVALID_EFFECTIVE_DATE", "Correction effective date cannot be zero")
	}
	if !c.Backfill {
		if latest, ok := e.latestActiveEffectiveDate(); ok && c.EffectiveDate.Before(latest) {
			return shared.NewDomainError("OUT_OF_ORDER_CORRECTION",
				fmt.Sprintf("effective date %s precedes latest active correction %s; mark the event as backfill to insert historically",
					c.EffectiveDate.Format("2006-01-02"), latest.Format("2006-01-02")))
		}
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.EntryID = e.ID
	c.Sequence = e.nextSequence()
	c.Active = true

	e.Corrections = append(e.Corrections, c)
	e.refreshRecoveredFlag()
	e.Touch()
	e.IncrementVersion()

	e.AddDomainEvent(NewCorrectionAppendedEvent(e, &e.Corrections[len(e.Corrections)-1]))
	if e.FullyRecovered {
		e.AddDomainEvent(NewEntryFullyRecoveredEvent(e))
	}

	return nil
}

// DeactivateCorrection retracts an erroneous correction while
// preserving the audit trail. The event stays in the log with
// active=false and no longer participates in the fold.
func (e *LedgerEntry) DeactivateCorrection(correctionID uuid.UUID) error {
	for i := range e.Corrections {
		c := &e.Corrections[i]
		if c.ID != correctionID {
			continue
		}
		if !c.Active {
			return shared.NewDomainError("INVALID_STATE", "Correction is already inactive")
		}
		c.Active = false
		e.refreshRecoveredFlag()
		e.Touch()
		e.IncrementVersion()
		e.AddDomainEvent(NewCorrectionDeactivatedEvent(e, c))
		return nil
	}
	return shared.ErrNotFound
}

// nextSequence returns the next per-entry sequence number. Sequences
// are strictly increasing across the whole log, active or not.
func (e *LedgerEntry) nextSequence() int {
	max := 0
	for i := range e.Corrections {
		if e.Corrections[i].Sequence > max {
			max = e.Corrections[i].Sequence
		}
	}
	return max + 1
}

// refreshRecoveredFlag re-derives the cached terminal flag from the fold
func (e *LedgerEntry) refreshRecoveredFlag() {
	e.FullyRecovered = e.CurrentState().FullyRecovered
}

// OutstandingBalance returns the fold-derived recognized-with-overhead
// balance still subject to correction and recovery
func (e *LedgerEntry) OutstandingBalance() decimal.Decimal {
	return e.CurrentState().RecognizedWithOverhead
}
