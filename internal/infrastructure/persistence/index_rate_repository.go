package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/sgpp/costrecovery/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIndexRateRepository implements indexes.Resolver backed by the
// published index table
type GormIndexRateRepository struct {
	db *gorm.DB
}

// NewGormIndexRateRepository creates a new GormIndexRateRepository
func NewGormIndexRateRepository(db *gorm.DB) *GormIndexRateRepository {
	return &GormIndexRateRepository{db: db}
}

// Resolve looks up the index rate for a reference month. A missing
// period surfaces as INDEX_NOT_FOUND, never as a zero rate.
func (r *GormIndexRateRepository) Resolve(ctx context.Context, kind indexes.Kind, year int, month time.Month) (indexes.Rate, error) {
	var model models.IndexRateModel
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND year = ? AND month = ?", kind, year, int(month)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return indexes.Rate{}, shared.ErrIndexNotFound
		}
		return indexes.Rate{}, err
	}
	return model.ToDomain(), nil
}

// Save upserts a published index value for its reference month
func (r *GormIndexRateRepository) Save(ctx context.Context, rate indexes.Rate) error {
	var model models.IndexRateModel
	model.FromDomain(rate)
	if model.ID == uuid.Nil {
		model.FromDomainBaseEntity(shared.NewBaseEntity())
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"percent", "updated_at"}),
	}).Create(&model).Error
}
