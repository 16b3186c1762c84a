package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecognitionInput is one record of the recognition result feed: the
// reconciled amounts a remittance cycle produced for a phase
type RecognitionInput struct {
	ContractID   string
	FieldID      string
	RemittanceID string
	Phase        ledger.Phase

	CostOrigin   ledger.CostOrigin
	SharingGroup string

	RecognitionDate time.Time

	TotalLaunched  decimal.Decimal
	RecognizedBase decimal.Decimal
	Unrecognized   decimal.Decimal
	NonRecoverable decimal.Decimal

	// Split of the recognized base between exploration and production
	// activity, used by the tiered overhead calculator
	ExplorationBase decimal.Decimal
	ProductionBase  decimal.Decimal

	// CumulativeVolume is the field's cumulative production at
	// recognition time, selecting the production overhead band
	CumulativeVolume decimal.Decimal
}

// Service handles the on-demand ledger operations: recognition
// ingestion, transfers, manual adjustments and correction retraction
type Service struct {
	entries  ledger.LedgerEntryRepository
	overhead ledger.OverheadTable
	log      *zap.Logger
}

// NewService creates a new ledger service. The overhead table is
// validated up front so a misconfigured schedule fails at startup, not
// on the first recognition.
func NewService(entries ledger.LedgerEntryRepository, overhead ledger.OverheadTable, log *zap.Logger) (*Service, error) {
	if err := overhead.Validate(); err != nil {
		return nil, err
	}
	return &Service{entries: entries, overhead: overhead, log: log}, nil
}

// RegisterRecognition ingests one recognition result, creating the
// genesis state of a ledger entry. The phase must follow the legal
// sequence for the contract/field, the (contract, field, remittance,
// phase) key must be new, and the tiered overhead is folded into the
// recognized amount before the entry is persisted.
func (s *Service) RegisterRecognition(ctx context.Context, input RecognitionInput) (*ledger.LedgerEntry, error) {
	key := ledger.EntryKey{
		ContractID:   input.ContractID,
		FieldID:      input.FieldID,
		RemittanceID: input.RemittanceID,
		Phase:        input.Phase,
	}

	exists, err := s.entries.ExistsByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check entry key: %w", err)
	}
	if exists {
		return nil, shared.ErrDuplicateLedgerEntry
	}

	latest, hasPrior, err := s.entries.LatestPhase(ctx, input.ContractID, input.FieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest phase: %w", err)
	}
	if err := ledger.ValidatePhaseSequence(input.Phase, latest, hasPrior); err != nil {
		return nil, err
	}

	overhead, err := s.overhead.ComputeOverhead(input.ExplorationBase, input.ProductionBase, input.CumulativeVolume)
	if err != nil {
		return nil, err
	}

	recognizedWithOverhead := input.RecognizedBase.Add(overhead.Total)
	genesis := ledger.GenesisAmounts{
		TotalLaunched:          input.TotalLaunched,
		RecognizedBase:         input.RecognizedBase,
		RecognizedWithOverhead: recognizedWithOverhead,
		Unrecognized:           input.Unrecognized,
		Recoverable:            recognizedWithOverhead.Sub(input.NonRecoverable),
		NonRecoverable:         input.NonRecoverable,
	}

	entry, err := ledger.NewLedgerEntry(key, input.CostOrigin, input.SharingGroup, input.RecognitionDate, genesis, overhead)
	if err != nil {
		return nil, err
	}

	if err := s.entries.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	s.log.Info("ledger entry recognized",
		zap.String("entry_id", entry.ID.String()),
		zap.String("key", key.String()),
		zap.String("cost_origin", input.CostOrigin.String()),
		zap.String("recognized_with_overhead", recognizedWithOverhead.String()))

	return entry, nil
}

// Transfer moves value between two entries as a partial invalidation.
// Both legs carry the same correlation id and are saved in one
// transaction, so the pair is always a conserved transfer.
func (s *Service) Transfer(ctx context.Context, sourceID, targetID uuid.UUID, amount decimal.Decimal, effectiveDate time.Time) (uuid.UUID, error) {
	if !amount.IsPositive() {
		return uuid.Nil, shared.NewDomainError("INVALID_INPUT", "Transfer amount must be positive")
	}
	if sourceID == targetID {
		return uuid.Nil, shared.NewDomainError("INVALID_INPUT", "Transfer source and target must differ")
	}

	source, err := s.entries.FindByID(ctx, sourceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load source entry: %w", err)
	}
	target, err := s.entries.FindByID(ctx, targetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load target entry: %w", err)
	}

	if amount.GreaterThan(source.OutstandingBalance()) {
		return uuid.Nil, shared.ErrInsufficientBalance
	}

	correlation := uuid.New()
	out := ledger.NewTransferLeg(ledger.TransferOut, target.ID, correlation, amount, effectiveDate)
	in := ledger.NewTransferLeg(ledger.TransferIn, source.ID, correlation, amount, effectiveDate)

	if err := source.AppendCorrection(out); err != nil {
		return uuid.Nil, err
	}
	if err := target.AppendCorrection(in); err != nil {
		return uuid.Nil, err
	}

	if err := s.entries.SaveAllWithLock(ctx, []*ledger.LedgerEntry{source, target}); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save transfer: %w", err)
	}

	s.log.Info("transfer applied",
		zap.String("source_id", sourceID.String()),
		zap.String("target_id", targetID.String()),
		zap.String("correlation_id", correlation.String()),
		zap.String("amount", amount.String()))

	return correlation, nil
}

// ManualAdjust appends an audited manual value adjustment to an entry
func (s *Service) ManualAdjust(ctx context.Context, entryID uuid.UUID, delta decimal.Decimal, note string, effectiveDate time.Time) (*ledger.LedgerEntry, error) {
	if note == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Manual adjustment requires an audit note")
	}

	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}

	if err := entry.AppendCorrection(ledger.NewManualAdjustment(delta, note, effectiveDate)); err != nil {
		return nil, err
	}
	if err := s.entries.SaveWithLock(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save adjustment: %w", err)
	}

	s.log.Info("manual adjustment applied",
		zap.String("entry_id", entryID.String()),
		zap.String("delta", delta.String()))

	return entry, nil
}

// DeactivateCorrection retracts an erroneous correction event. The
// event stays in the log with active=false; the fold no longer sees it.
func (s *Service) DeactivateCorrection(ctx context.Context, entryID, correctionID uuid.UUID) (*ledger.LedgerEntry, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}

	if err := entry.DeactivateCorrection(correctionID); err != nil {
		return nil, err
	}
	if err := s.entries.SaveWithLock(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save retraction: %w", err)
	}

	s.log.Info("correction retracted",
		zap.String("entry_id", entryID.String()),
		zap.String("correction_id", correctionID.String()))

	return entry, nil
}

// GetEntry returns an entry with its fold-derived current state
func (s *Service) GetEntry(ctx context.Context, entryID uuid.UUID) (*ledger.LedgerEntry, ledger.Snapshot, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, ledger.Snapshot{}, err
	}
	return entry, entry.CurrentState(), nil
}

// CorrectionFeed returns the entry's correction events in fold order as
// a read-only feed for downstream accounting
func (s *Service) CorrectionFeed(ctx context.Context, entryID uuid.UUID) ([]ledger.Correction, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return entry.OrderedCorrections(), nil
}
