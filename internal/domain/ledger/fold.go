package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the current state of a ledger entry, derived by folding
// all active corrections over the genesis amounts. It is a pure
// function of the entry's data: computing it twice over the same event
// set yields identical results.
type Snapshot struct {
	RecognizedWithOverhead decimal.Decimal `json:"recognized_with_overhead"`

	// Amounts scaled by index corrections alongside the main balance,
	// following the accumulation rule of monetary corrections
	TotalLaunched  decimal.Decimal `json:"total_launched"`
	Unrecognized   decimal.Decimal `json:"unrecognized"`
	Recoverable    decimal.Decimal `json:"recoverable"`
	NonRecoverable decimal.Decimal `json:"non_recoverable"`

	TotalRecovered decimal.Decimal `json:"total_recovered"`

	// AccumulatedIndex is the running sum of applied index rates;
	// AccumulatedValue the running sum of index deltas in currency
	AccumulatedIndex decimal.Decimal `json:"accumulated_index"`
	AccumulatedValue decimal.Decimal `json:"accumulated_value"`

	// NetDelta is the total movement against the genesis balance,
	// used to cross-verify conserved transfers
	NetDelta decimal.Decimal `json:"net_delta"`

	FullyRecovered bool       `json:"fully_recovered"`
	LastCorrection *time.Time `json:"last_correction,omitempty"`
	ActiveEvents   int        `json:"active_events"`
}

// foldOrder sorts corrections the way the fold consumes them:
// ascending effective date, ties broken by creation time, then by
// per-entry sequence (insertion order). Append order never changes
// fold order for events with distinct effective dates.
func foldOrder(corrections []Correction) []*Correction {
	ordered := make([]*Correction, 0, len(corrections))
	for i := range corrections {
		if corrections[i].Active {
			ordered = append(ordered, &corrections[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Sequence < b.Sequence
	})
	return ordered
}

// CurrentState folds all active corrections in effective-date order
// over the genesis amounts. The fold is side-effect-free and safe to
// call concurrently and repeatedly.
func (e *LedgerEntry) CurrentState() Snapshot {
	s := Snapshot{
		RecognizedWithOverhead: e.Genesis.RecognizedWithOverhead,
		TotalLaunched:          e.Genesis.TotalLaunched,
		Unrecognized:           e.Genesis.Unrecognized,
		Recoverable:            e.Genesis.Recoverable,
		NonRecoverable:         e.Genesis.NonRecoverable,
	}

	one := decimal.NewFromInt(1)

	for _, c := range foldOrder(e.Corrections) {
		switch c.Type {
		case CorrectionTypeIndex:
			factor := one.Add(c.Rate)
			delta := s.RecognizedWithOverhead.Mul(c.Rate)
			s.RecognizedWithOverhead = s.RecognizedWithOverhead.Add(delta)
			s.TotalLaunched = s.TotalLaunched.Mul(factor)
			s.Unrecognized = s.Unrecognized.Mul(factor)
			s.Recoverable = s.Recoverable.Mul(factor)
			s.NonRecoverable = s.NonRecoverable.Mul(factor)
			s.AccumulatedIndex = s.AccumulatedIndex.Add(c.Rate)
			s.AccumulatedValue = s.AccumulatedValue.Add(delta)
			s.NetDelta = s.NetDelta.Add(delta)
			// A correction that moves a recovered entry off zero makes
			// it recoverable again
			if !s.RecognizedWithOverhead.IsZero() {
				s.FullyRecovered = false
			}

		case CorrectionTypeRecovery:
			s.RecognizedWithOverhead = s.RecognizedWithOverhead.Sub(c.AmountRecovered)
			s.TotalRecovered = s.TotalRecovered.Add(c.AmountRecovered)
			s.NetDelta = s.NetDelta.Sub(c.AmountRecovered)
			if s.RecognizedWithOverhead.IsZero() {
				s.FullyRecovered = true
			} else {
				s.FullyRecovered = false
			}

		case CorrectionTypeManual:
			s.RecognizedWithOverhead = s.RecognizedWithOverhead.Add(c.ValueDelta)
			s.NetDelta = s.NetDelta.Add(c.ValueDelta)
			if s.RecognizedWithOverhead.IsZero() {
				// A manual adjustment landing exactly on zero is a
				// compensating event
				s.FullyRecovered = true
			} else {
				s.FullyRecovered = false
			}

		case CorrectionTypeTransfer:
			if c.Direction == TransferOut {
				s.RecognizedWithOverhead = s.RecognizedWithOverhead.Sub(c.Amount)
				s.NetDelta = s.NetDelta.Sub(c.Amount)
			} else {
				s.RecognizedWithOverhead = s.RecognizedWithOverhead.Add(c.Amount)
				s.NetDelta = s.NetDelta.Add(c.Amount)
			}
			if s.RecognizedWithOverhead.IsZero() {
				s.FullyRecovered = true
			} else {
				s.FullyRecovered = false
			}
		}

		t := c.EffectiveDate
		s.LastCorrection = &t
		s.ActiveEvents++
	}

	return s
}

// OrderedCorrections returns a copy of the whole correction log,
// retracted events included, in fold order. This is the read-only feed
// consumed by downstream accounting.
func (e *LedgerEntry) OrderedCorrections() []Correction {
	ordered := make([]Correction, len(e.Corrections))
	copy(ordered, e.Corrections)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Sequence < b.Sequence
	})
	return ordered
}

// CorrectedInWindow reports whether the entry holds an active index
// correction whose effective date falls on or after windowStart. The
// annual correction scheduler uses it to skip entries already corrected
// for the current annual cycle.
func (e *LedgerEntry) CorrectedInWindow(windowStart time.Time) bool {
	for i := range e.Corrections {
		c := &e.Corrections[i]
		if c.Active && c.Type == CorrectionTypeIndex && !c.EffectiveDate.Before(windowStart) {
			return true
		}
	}
	return false
}

// RecoveredInPeriod reports whether the entry holds an active recovery
// event funded by the given contract/field with an effective date
// inside [periodStart, periodEnd). The monthly allocator anchors its
// events to the period's first day, so a match means the funding
// field's pass for that period already ran. The funding attribution
// matters: a shared-group entry carries recoveries funded by other
// fields in the same period, and those must not count.
func (e *LedgerEntry) RecoveredInPeriod(fundedBy string, periodStart, periodEnd time.Time) bool {
	for i := range e.Corrections {
		c := &e.Corrections[i]
		if c.Active && c.Type == CorrectionTypeRecovery && c.FundedBy == fundedBy &&
			!c.EffectiveDate.Before(periodStart) && c.EffectiveDate.Before(periodEnd) {
			return true
		}
	}
	return false
}
