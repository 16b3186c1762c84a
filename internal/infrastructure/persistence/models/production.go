package models

import (
	"time"

	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/shopspring/decimal"
)

// ProductionReportModel is the persistence model for one field's
// monthly production report. One row per (contract, field, period).
type ProductionReportModel struct {
	BaseModel
	ContractID string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_production_period,priority:1"`
	FieldID    string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_production_period,priority:2"`
	Year       int             `gorm:"not null;uniqueIndex:idx_production_period,priority:3;index:idx_production_month,priority:1"`
	Month      int             `gorm:"not null;uniqueIndex:idx_production_period,priority:4;index:idx_production_month,priority:2"`
	Volume     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Capacity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ProductionReportModel) TableName() string {
	return "production_reports"
}

// ToDomain converts the persistence model to a domain Report
func (m *ProductionReportModel) ToDomain() production.Report {
	return production.Report{
		ContractID: m.ContractID,
		FieldID:    m.FieldID,
		Period:     ledger.NewPeriod(m.Year, time.Month(m.Month)),
		Volume:     m.Volume,
		Capacity:   m.Capacity,
	}
}

// FromDomain populates the persistence model from a domain Report
func (m *ProductionReportModel) FromDomain(r production.Report) {
	m.ContractID = r.ContractID
	m.FieldID = r.FieldID
	m.Year = r.Period.Year
	m.Month = int(r.Period.Month)
	m.Volume = r.Volume
	m.Capacity = r.Capacity
}
