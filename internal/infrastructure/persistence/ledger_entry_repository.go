package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/sgpp/costrecovery/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerEntryRepository implements LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

func withCorrections(db *gorm.DB) *gorm.DB {
	return db.Preload("Corrections", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	})
}

// FindByID finds a ledger entry by ID, correction log included
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := withCorrections(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKey finds the one entry for a (contract, field, remittance, phase)
func (r *GormLedgerEntryRepository) FindByKey(ctx context.Context, key ledger.EntryKey) (*ledger.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := withCorrections(r.db.WithContext(ctx)).
		Where("contract_id = ? AND field_id = ? AND remittance_id = ? AND phase = ?",
			key.ContractID, key.FieldID, key.RemittanceID, key.Phase).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByKey checks the one-entry-per-key uniqueness invariant
func (r *GormLedgerEntryRepository) ExistsByKey(ctx context.Context, key ledger.EntryKey) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("contract_id = ? AND field_id = ? AND remittance_id = ? AND phase = ?",
			key.ContractID, key.FieldID, key.RemittanceID, key.Phase).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindDueForCorrection finds entries whose recognition date is on or
// before the cutoff
func (r *GormLedgerEntryRepository) FindDueForCorrection(ctx context.Context, recognizedOnOrBefore time.Time) ([]ledger.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := withCorrections(r.db.WithContext(ctx)).
		Where("recognition_date <= ?", recognizedOnOrBefore).
		Order("recognition_date ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// FindOpenByField finds not-fully-recovered entries for a contract/field
func (r *GormLedgerEntryRepository) FindOpenByField(ctx context.Context, contractID, fieldID string) ([]ledger.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := withCorrections(r.db.WithContext(ctx)).
		Where("contract_id = ? AND field_id = ? AND fully_recovered = ?", contractID, fieldID, false).
		Order("recognition_date ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// FindOpenBySharingGroup finds not-fully-recovered shared entries of a group
func (r *GormLedgerEntryRepository) FindOpenBySharingGroup(ctx context.Context, sharingGroup string) ([]ledger.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := withCorrections(r.db.WithContext(ctx)).
		Where("sharing_group = ? AND cost_origin <> ? AND fully_recovered = ?",
			sharingGroup, ledger.CostOriginExclusive, false).
		Order("recognition_date ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(entryModels), nil
}

// LatestPhase returns the most advanced recognition phase recorded for
// a contract/field. Phase order is a domain rule, so the comparison
// happens over the fetched phases rather than in SQL.
func (r *GormLedgerEntryRepository) LatestPhase(ctx context.Context, contractID, fieldID string) (ledger.Phase, bool, error) {
	var phases []ledger.Phase
	if err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("contract_id = ? AND field_id = ?", contractID, fieldID).
		Distinct().
		Pluck("phase", &phases).Error; err != nil {
		return "", false, err
	}
	if len(phases) == 0 {
		return "", false, nil
	}
	latest := phases[0]
	for _, p := range phases[1:] {
		if p.Order() > latest.Order() {
			latest = p
		}
	}
	return latest, true, nil
}

// Save creates an entry together with its correction log
func (r *GormLedgerEntryRepository) Save(ctx context.Context, entry *ledger.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveWithLock saves with optimistic locking; returns
// CONCURRENCY_CONFLICT when the stored version moved
func (r *GormLedgerEntryRepository) SaveWithLock(ctx context.Context, entry *ledger.LedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveEntryLocked(tx, entry)
	})
}

// SaveAllWithLock saves several entries in one transaction with
// optimistic locking, in deterministic ID order
func (r *GormLedgerEntryRepository) SaveAllWithLock(ctx context.Context, entries []*ledger.LedgerEntry) error {
	ordered := make([]*ledger.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range ordered {
			if err := saveEntryLocked(tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveEntryLocked persists one entry inside an open transaction. The
// genesis columns are immutable after creation, so an update touches
// only the mutable columns; the correction log is insert-only apart
// from the active flag.
func saveEntryLocked(tx *gorm.DB, entry *ledger.LedgerEntry) error {
	var current models.LedgerEntryModel
	if err := tx.Select("version").Where("id = ?", entry.ID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(models.LedgerEntryModelFromDomain(entry)).Error
		}
		return err
	}

	// Domain model already incremented version on mutation
	expectedVersion := entry.Version - 1
	if current.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}

	result := tx.Model(&models.LedgerEntryModel{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(map[string]interface{}{
			"version":         entry.Version,
			"fully_recovered": entry.FullyRecovered,
			"updated_at":      entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(entry.Corrections) == 0 {
		return nil
	}
	correctionModels := make([]models.CorrectionModel, len(entry.Corrections))
	for i := range entry.Corrections {
		correctionModels[i].FromDomain(&entry.Corrections[i])
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active"}),
	}).Create(&correctionModels).Error
}

func toDomainEntries(entryModels []models.LedgerEntryModel) []ledger.LedgerEntry {
	entries := make([]ledger.LedgerEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries
}
