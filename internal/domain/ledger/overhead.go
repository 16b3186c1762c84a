package ledger

import (
	"fmt"

	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VolumeBand is one tier of the production overhead table: amounts
// recognized while the field's cumulative production falls at or below
// UpTo are charged at Rate. A nil UpTo marks the open-ended last band.
type VolumeBand struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal // decimal fraction, e.g. 0.05
}

// OverheadTable is the externally configured tiered overhead schedule.
// Exploration-phase amounts always use the flat exploration rate;
// production-phase amounts use the band selected by cumulative volume.
type OverheadTable struct {
	ExplorationRate decimal.Decimal
	Bands           []VolumeBand
}

// Validate checks the band schedule is usable: at least one band,
// ascending bounds, a single open-ended band at the end.
func (t OverheadTable) Validate() error {
	if len(t.Bands) == 0 {
		return shared.NewDomainError("INVALID_OVERHEAD_TABLE", "Overhead table requires at least one volume band")
	}
	var prev *decimal.Decimal
	for i, b := range t.Bands {
		if b.UpTo == nil {
			if i != len(t.Bands)-1 {
				return shared.NewDomainError("INVALID_OVERHEAD_TABLE", "Only the last volume band may be open-ended")
			}
			continue
		}
		if prev != nil && !b.UpTo.GreaterThan(*prev) {
			return shared.NewDomainError("INVALID_OVERHEAD_TABLE",
				fmt.Sprintf("Volume band bounds must be strictly ascending, got %s after %s", b.UpTo, prev))
		}
		prev = b.UpTo
	}
	return nil
}

// productionRate selects the production rate for the band containing
// the cumulative volume. Falls through to the last band when the
// volume exceeds every bound.
func (t OverheadTable) productionRate(cumulativeVolume decimal.Decimal) decimal.Decimal {
	for _, b := range t.Bands {
		if b.UpTo == nil || cumulativeVolume.LessThanOrEqual(*b.UpTo) {
			return b.Rate
		}
	}
	return t.Bands[len(t.Bands)-1].Rate
}

// ComputeOverhead computes the tiered overhead charge for the
// recognized amounts of an entry. The total is always folded into
// recognizedWithOverhead by the caller, never silently omitted.
func (t OverheadTable) ComputeOverhead(explorationBase, productionBase, cumulativeVolume decimal.Decimal) (OverheadBreakdown, error) {
	if err := t.Validate(); err != nil {
		return OverheadBreakdown{}, err
	}
	exploration := explorationBase.Mul(t.ExplorationRate)
	production := productionBase.Mul(t.productionRate(cumulativeVolume))
	return OverheadBreakdown{
		Exploration: exploration,
		Production:  production,
		Total:       exploration.Add(production),
	}, nil
}
