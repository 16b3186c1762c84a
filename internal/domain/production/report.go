package production

import (
	"context"

	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Report is one field's reported production for a period together with
// the recovery capacity derived from it. Capacity is an opaque input
// to the engine: the monotonic volume-to-capacity rules and any
// field/contract caps live upstream.
type Report struct {
	ContractID string
	FieldID    string
	Period     ledger.Period
	Volume     decimal.Decimal
	Capacity   decimal.Decimal
}

// Source is the collaborator contract for the production-volume
// reporting service
type Source interface {
	// Get returns the report for one contract/field/period.
	// Returns NOT_FOUND when no production was reported.
	Get(ctx context.Context, contractID, fieldID string, period ledger.Period) (Report, error)

	// ListForPeriod returns every report filed for a period, used by
	// the monthly trigger to fan out allocator passes
	ListForPeriod(ctx context.Context, period ledger.Period) ([]Report, error)
}
