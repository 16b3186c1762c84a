package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the process-wide correction settings
type Config struct {
	// IndexKind selects IPCA or IGPM for the whole process
	IndexKind indexes.Kind
	// RateMonthOffset shifts the rate reference month relative to the
	// entry's anniversary month (0 = anniversary month itself,
	// -1 = previous month). Mirrors the index table publication lag.
	RateMonthOffset int
	// IdempotencyTTL bounds how long a completed run key is remembered
	IdempotencyTTL time.Duration
}

// DefaultConfig returns the default correction configuration
func DefaultConfig() Config {
	return Config{
		IndexKind:       indexes.KindIPCA,
		RateMonthOffset: 0,
		IdempotencyTTL:  45 * 24 * time.Hour,
	}
}

// Service is the annual correction scheduler: a monthly batch that
// finds ledger entries due for inflation correction and appends index
// correction events. Scheduling cadence is owned externally; the
// service only exposes RunMonthlyCorrection, which is safe to invoke
// repeatedly for the same as-of date.
type Service struct {
	entries     ledger.LedgerEntryRepository
	resolver    indexes.Resolver
	idempotency shared.IdempotencyStore
	cfg         Config
	log         *zap.Logger
}

// NewService creates a new correction scheduler service
func NewService(
	entries ledger.LedgerEntryRepository,
	resolver indexes.Resolver,
	idempotency shared.IdempotencyStore,
	cfg Config,
	log *zap.Logger,
) (*Service, error) {
	if !cfg.IndexKind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INDEX_KIND", fmt.Sprintf("unknown index kind %q", cfg.IndexKind))
	}
	return &Service{
		entries:     entries,
		resolver:    resolver,
		idempotency: idempotency,
		cfg:         cfg,
		log:         log,
	}, nil
}

// SkipReason explains why an eligible-looking entry received no correction
type SkipReason string

const (
	SkipZeroBalance      SkipReason = "ZERO_BALANCE"
	SkipAlreadyCorrected SkipReason = "ALREADY_CORRECTED"
	SkipTooRecent        SkipReason = "TOO_RECENT"
)

// CorrectedEntry records one applied correction in a run report
type CorrectedEntry struct {
	EntryID      uuid.UUID       `json:"entry_id"`
	Rate         decimal.Decimal `json:"rate"`
	ValueDelta   decimal.Decimal `json:"value_delta"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// SkippedEntry records one entry excluded from a run
type SkippedEntry struct {
	EntryID uuid.UUID  `json:"entry_id"`
	Reason  SkipReason `json:"reason"`
}

// FailedEntry records one per-entry failure. Failures never abort the
// batch for other entries.
type FailedEntry struct {
	EntryID uuid.UUID `json:"entry_id"`
	Error   string    `json:"error"`
}

// RunReport is the structured result of one scheduler invocation
type RunReport struct {
	AsOf             time.Time        `json:"as_of"`
	Period           string           `json:"period"`
	AlreadyProcessed bool             `json:"already_processed"`
	Corrected        []CorrectedEntry `json:"corrected"`
	Skipped          []SkippedEntry   `json:"skipped"`
	Failed           []FailedEntry    `json:"failed"`
}

// runKey is the idempotency key for one monthly invocation
func runKey(period ledger.Period) string {
	return "correction:" + period.String()
}

// annualWindowStart returns the first day of the latest anniversary
// month of the recognition period that is not after the as-of period.
// An entry is considered corrected for the current annual cycle when
// it holds an active index correction effective on or after this date.
func annualWindowStart(recognition, asOf ledger.Period) time.Time {
	cycles := asOf.MonthsSince(recognition) / 12
	return recognition.AddMonths(cycles * 12).FirstDay()
}

// RunMonthlyCorrection applies the annual inflation correction to every
// entry due as of the given date. Idempotent by construction: an entry
// already corrected inside its current annual window is skipped, so
// re-invoking for the same asOfDate appends nothing.
func (s *Service) RunMonthlyCorrection(ctx context.Context, asOf time.Time) (*RunReport, error) {
	period := ledger.PeriodOf(asOf)
	report := &RunReport{AsOf: asOf, Period: period.String()}

	processed, err := s.idempotency.IsProcessed(ctx, runKey(period))
	if err != nil {
		return nil, fmt.Errorf("failed to check run key: %w", err)
	}
	if processed {
		s.log.Info("monthly correction already completed for period",
			zap.String("period", period.String()))
		report.AlreadyProcessed = true
		return report, nil
	}

	// Entries are due once at least 12 whole months have elapsed from
	// (recognitionMonth, recognitionYear): recognized no later than the
	// last instant of the month twelve months back.
	cutoff := period.AddMonths(-11).FirstDay().Add(-time.Nanosecond)
	due, err := s.entries.FindDueForCorrection(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries due for correction: %w", err)
	}

	s.log.Info("monthly correction pass starting",
		zap.String("period", period.String()),
		zap.String("index", s.cfg.IndexKind.String()),
		zap.Int("candidates", len(due)))

	effectiveDate := period.FirstDay()

	for i := range due {
		entry := &due[i]
		snapshot := entry.CurrentState()

		// Correction is never applied to a zero balance; negative
		// balances are corrected like positive ones.
		if snapshot.RecognizedWithOverhead.IsZero() {
			report.Skipped = append(report.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipZeroBalance})
			continue
		}

		recognition := ledger.PeriodOf(entry.RecognitionDate)
		if period.MonthsSince(recognition) < 12 {
			report.Skipped = append(report.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipTooRecent})
			continue
		}

		windowStart := annualWindowStart(recognition, period)
		if entry.CorrectedInWindow(windowStart) {
			report.Skipped = append(report.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipAlreadyCorrected})
			continue
		}

		if err := s.correctEntry(ctx, entry, snapshot, windowStart, effectiveDate, report); err != nil {
			// Per-entry isolation: record the failure and keep going.
			s.log.Warn("correction failed for entry",
				zap.String("entry_id", entry.ID.String()),
				zap.String("key", entry.Key().String()),
				zap.Error(err))
			report.Failed = append(report.Failed, FailedEntry{EntryID: entry.ID, Error: err.Error()})
		}
	}

	s.log.Info("monthly correction pass finished",
		zap.String("period", period.String()),
		zap.Int("corrected", len(report.Corrected)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))

	// Only a clean run marks the period done; a partial run stays
	// retryable, and the annual-window check keeps retries append-free
	// for entries that already succeeded.
	if len(report.Failed) == 0 {
		if _, err := s.idempotency.MarkProcessed(ctx, runKey(period), s.cfg.IdempotencyTTL); err != nil {
			s.log.Warn("failed to mark correction run processed", zap.Error(err))
		}
	}

	return report, nil
}

// correctEntry resolves the index for one entry's reference period and
// appends the correction event
func (s *Service) correctEntry(
	ctx context.Context,
	entry *ledger.LedgerEntry,
	snapshot ledger.Snapshot,
	windowStart time.Time,
	effectiveDate time.Time,
	report *RunReport,
) error {
	ref := ledger.PeriodOf(windowStart).AddMonths(s.cfg.RateMonthOffset)
	rate, err := s.resolver.Resolve(ctx, s.cfg.IndexKind, ref.Year, ref.Month)
	if err != nil {
		return fmt.Errorf("index %s %s: %w", s.cfg.IndexKind, ref, err)
	}

	fraction := rate.Fraction()
	delta := snapshot.RecognizedWithOverhead.Mul(fraction)

	c := ledger.NewIndexCorrection(s.cfg.IndexKind, fraction, delta, effectiveDate)
	c.AccumulatedIndex = snapshot.AccumulatedIndex.Add(fraction)
	c.AccumulatedValue = snapshot.AccumulatedValue.Add(delta)

	if err := entry.AppendCorrection(c); err != nil {
		return err
	}
	if err := s.entries.SaveWithLock(ctx, entry); err != nil {
		return err
	}

	report.Corrected = append(report.Corrected, CorrectedEntry{
		EntryID:      entry.ID,
		Rate:         fraction,
		ValueDelta:   delta,
		BalanceAfter: entry.OutstandingBalance(),
	})
	return nil
}
