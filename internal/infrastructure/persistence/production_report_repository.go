package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/sgpp/costrecovery/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductionReportRepository implements production.Source backed by
// the filed monthly reports
type GormProductionReportRepository struct {
	db *gorm.DB
}

// NewGormProductionReportRepository creates a new GormProductionReportRepository
func NewGormProductionReportRepository(db *gorm.DB) *GormProductionReportRepository {
	return &GormProductionReportRepository{db: db}
}

// Get returns the report for one contract/field/period
func (r *GormProductionReportRepository) Get(ctx context.Context, contractID, fieldID string, period ledger.Period) (production.Report, error) {
	var model models.ProductionReportModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND field_id = ? AND year = ? AND month = ?",
			contractID, fieldID, period.Year, int(period.Month)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return production.Report{}, shared.ErrNotFound
		}
		return production.Report{}, err
	}
	return model.ToDomain(), nil
}

// ListForPeriod returns every report filed for a period
func (r *GormProductionReportRepository) ListForPeriod(ctx context.Context, period ledger.Period) ([]production.Report, error) {
	var reportModels []models.ProductionReportModel
	if err := r.db.WithContext(ctx).
		Where("year = ? AND month = ?", period.Year, int(period.Month)).
		Order("contract_id ASC, field_id ASC").
		Find(&reportModels).Error; err != nil {
		return nil, err
	}
	reports := make([]production.Report, len(reportModels))
	for i := range reportModels {
		reports[i] = reportModels[i].ToDomain()
	}
	return reports, nil
}

// Save upserts a filed report for its period
func (r *GormProductionReportRepository) Save(ctx context.Context, report production.Report) error {
	var model models.ProductionReportModel
	model.FromDomain(report)
	if model.ID == uuid.Nil {
		model.FromDomainBaseEntity(shared.NewBaseEntity())
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}, {Name: "field_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"volume", "capacity", "updated_at"}),
	}).Create(&model).Error
}
