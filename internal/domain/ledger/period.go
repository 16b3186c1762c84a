package ledger

import (
	"fmt"
	"time"
)

// Period identifies a calendar month. Batch jobs take an explicit
// period or as-of date instead of reading a global clock.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing the given instant
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// NewPeriod creates a period from year and month numbers
func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// FirstDay returns midnight UTC on the first day of the period
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the period n months after p (n may be negative)
func (p Period) AddMonths(n int) Period {
	t := p.FirstDay().AddDate(0, n, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// MonthsSince returns the number of whole months from other to p.
// Negative when other is later than p.
func (p Period) MonthsSince(other Period) int {
	return (p.Year-other.Year)*12 + int(p.Month) - int(other.Month)
}

// Before reports whether p precedes other
func (p Period) Before(other Period) bool {
	return p.MonthsSince(other) < 0
}

// Equal reports whether both periods identify the same month
func (p Period) Equal(other Period) bool {
	return p.Year == other.Year && p.Month == other.Month
}
