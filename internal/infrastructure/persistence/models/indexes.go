package models

import (
	"time"

	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/shopspring/decimal"
)

// IndexRateModel is the persistence model for one published monthly
// index value. Exactly one row exists per (kind, year, month).
type IndexRateModel struct {
	BaseModel
	Kind    indexes.Kind    `gorm:"type:varchar(10);not null;uniqueIndex:idx_index_rate_period,priority:1"`
	Year    int             `gorm:"not null;uniqueIndex:idx_index_rate_period,priority:2"`
	Month   int             `gorm:"not null;uniqueIndex:idx_index_rate_period,priority:3"`
	Percent decimal.Decimal `gorm:"type:decimal(10,6);not null"`
}

// TableName returns the table name for GORM
func (IndexRateModel) TableName() string {
	return "index_rates"
}

// ToDomain converts the persistence model to a domain Rate
func (m *IndexRateModel) ToDomain() indexes.Rate {
	return indexes.Rate{
		Kind:    m.Kind,
		Year:    m.Year,
		Month:   time.Month(m.Month),
		Percent: m.Percent,
	}
}

// FromDomain populates the persistence model from a domain Rate
func (m *IndexRateModel) FromDomain(r indexes.Rate) {
	m.Kind = r.Kind
	m.Year = r.Year
	m.Month = int(r.Month)
	m.Percent = r.Percent
}
