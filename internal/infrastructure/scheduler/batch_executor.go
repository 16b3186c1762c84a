package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sgpp/costrecovery/internal/application/correction"
	"github.com/sgpp/costrecovery/internal/application/recovery"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CorrectionRunner runs the annual monetary correction batch
type CorrectionRunner interface {
	RunMonthlyCorrection(ctx context.Context, asOf time.Time) (*correction.RunReport, error)
}

// RecoveryRunner runs the recovery allocation pass for one field
type RecoveryRunner interface {
	RunMonthlyRecovery(ctx context.Context, contractID, fieldID string, period ledger.Period) (*recovery.RunReport, error)
}

// BatchExecutor dispatches scheduled jobs to the application services.
// A recovery job fans out into one allocator pass per filed production
// report; each pass carries its own idempotency key, so a partially
// failed fan-out can be retried without double-allocating.
type BatchExecutor struct {
	corrections CorrectionRunner
	recoveries  RecoveryRunner
	reports     production.Source
	logger      *zap.Logger
}

// NewBatchExecutor creates a new BatchExecutor
func NewBatchExecutor(
	corrections CorrectionRunner,
	recoveries RecoveryRunner,
	reports production.Source,
	logger *zap.Logger,
) *BatchExecutor {
	return &BatchExecutor{
		corrections: corrections,
		recoveries:  recoveries,
		reports:     reports,
		logger:      logger,
	}
}

// Execute runs one scheduled job
func (e *BatchExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case JobKindCorrection:
		return e.runCorrection(ctx, job)
	case JobKindRecovery:
		return e.runRecovery(ctx, job)
	default:
		return ErrInvalidJobKind
	}
}

func (e *BatchExecutor) runCorrection(ctx context.Context, job *Job) error {
	ctx, log := logger.WithRunID(ctx, e.logger, "correction:"+ledger.PeriodOf(job.AsOf).String())

	report, err := e.corrections.RunMonthlyCorrection(ctx, job.AsOf)
	if err != nil {
		return err
	}
	if report.AlreadyProcessed {
		log.Info("Correction batch already processed for period",
			zap.String("period", report.Period),
		)
		return nil
	}

	log.Info("Correction batch finished",
		zap.String("period", report.Period),
		zap.Int("corrected", len(report.Corrected)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	if len(report.Failed) > 0 {
		// Surface the partial failure so the scheduler retries; entries
		// already corrected this cycle are skipped on the next run
		return fmt.Errorf("correction batch for %s: %d of %d entries failed",
			report.Period, len(report.Failed), len(report.Failed)+len(report.Corrected))
	}
	return nil
}

func (e *BatchExecutor) runRecovery(ctx context.Context, job *Job) error {
	ctx, log := logger.WithRunID(ctx, e.logger, "recovery:"+job.Period.String())

	reports, err := e.reports.ListForPeriod(ctx, job.Period)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		log.Info("No production reports filed for period",
			zap.String("period", job.Period.String()),
		)
		return nil
	}

	failed := 0
	for _, r := range reports {
		run, err := e.recoveries.RunMonthlyRecovery(ctx, r.ContractID, r.FieldID, r.Period)
		if err != nil {
			failed++
			log.Error("Recovery pass failed",
				zap.String("contract_id", r.ContractID),
				zap.String("field_id", r.FieldID),
				zap.String("period", r.Period.String()),
				zap.Error(err),
			)
			continue
		}
		if run.AlreadyProcessed {
			continue
		}
		log.Info("Recovery pass finished",
			zap.String("contract_id", r.ContractID),
			zap.String("field_id", r.FieldID),
			zap.String("period", r.Period.String()),
			zap.String("capacity_used", run.CapacityUsed.String()),
			zap.Int("allocations", len(run.Allocations)),
		)
	}
	if failed > 0 {
		return fmt.Errorf("recovery batch for %s: %d of %d field passes failed",
			job.Period, failed, len(reports))
	}
	return nil
}
