package indexes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the inflation index used for annual monetary correction
type Kind string

const (
	KindIPCA Kind = "IPCA"
	KindIGPM Kind = "IGPM"
)

// IsValid checks if the kind is a supported index
func (k Kind) IsValid() bool {
	return k == KindIPCA || k == KindIGPM
}

// String returns the string representation of the index kind
func (k Kind) String() string {
	return string(k)
}

var decimalOne = decimal.NewFromInt(1)
var decimalHundred = decimal.NewFromInt(100)

// Rate is the monthly index value for a reference period. The value is
// stored as a percentage the way the index table publishes it.
type Rate struct {
	Kind    Kind
	Year    int
	Month   time.Month
	Percent decimal.Decimal
}

// Fraction returns the rate as a decimal fraction (4.5% -> 0.045)
func (r Rate) Fraction() decimal.Decimal {
	return r.Percent.Div(decimalHundred)
}

// Factor returns the multiplicative correction factor (4.5% -> 1.045)
func (r Rate) Factor() decimal.Decimal {
	return decimalOne.Add(r.Fraction())
}

// Resolver looks up the applicable index rate for a reference month.
// A missing period must surface as INDEX_NOT_FOUND, never as a zero
// rate: a silent zero would corrupt the correction audit trail.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind, year int, month time.Month) (Rate, error)
}
