package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"go.uber.org/zap"
)

// MonthlyTriggerConfig holds configuration for the monthly trigger.
// Days are days of the month, hours in 24h local time.
type MonthlyTriggerConfig struct {
	CorrectionDay  int
	CorrectionHour int

	// The recovery run waits for the previous month's production
	// reports to land, so it fires later in the month
	RecoveryDay  int
	RecoveryHour int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultMonthlyTriggerConfig returns default monthly trigger configuration
func DefaultMonthlyTriggerConfig() MonthlyTriggerConfig {
	return MonthlyTriggerConfig{
		CorrectionDay:  1,
		CorrectionHour: 2,
		RecoveryDay:    5,
		RecoveryHour:   3,
		CheckInterval:  time.Minute,
	}
}

// MonthlyTrigger fires the correction and recovery batches once per
// calendar month at their configured day and hour
type MonthlyTrigger struct {
	config    MonthlyTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Track which period each batch last fired for
	lastCorrectionPeriod string
	lastRecoveryPeriod   string
}

// NewMonthlyTrigger creates a new monthly trigger
func NewMonthlyTrigger(config MonthlyTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *MonthlyTrigger {
	return &MonthlyTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start starts the monthly trigger
func (m *MonthlyTrigger) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runLoop(ctx)

	m.logger.Info("Monthly trigger started",
		zap.Int("correction_day", m.config.CorrectionDay),
		zap.Int("correction_hour", m.config.CorrectionHour),
		zap.Int("recovery_day", m.config.RecoveryDay),
		zap.Int("recovery_hour", m.config.RecoveryHour),
	)

	return nil
}

// Stop stops the monthly trigger
func (m *MonthlyTrigger) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Monthly trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically whether a batch is due
func (m *MonthlyTrigger) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndTrigger(time.Now())
		}
	}
}

// checkAndTrigger fires any batch whose configured day and hour has
// arrived and that has not yet fired for the current period
func (m *MonthlyTrigger) checkAndTrigger(now time.Time) {
	period := ledger.PeriodOf(now)

	if m.due(now, m.config.CorrectionDay, m.config.CorrectionHour) {
		m.mu.Lock()
		fired := m.lastCorrectionPeriod == period.String()
		if !fired {
			m.lastCorrectionPeriod = period.String()
		}
		m.mu.Unlock()

		if !fired {
			m.logger.Info("Triggering monthly correction batch",
				zap.String("period", period.String()),
			)
			if err := m.scheduler.ScheduleCorrectionRun(now); err != nil {
				m.logger.Error("Failed to schedule correction batch", zap.Error(err))
			}
		}
	}

	if m.due(now, m.config.RecoveryDay, m.config.RecoveryHour) {
		m.mu.Lock()
		fired := m.lastRecoveryPeriod == period.String()
		if !fired {
			m.lastRecoveryPeriod = period.String()
		}
		m.mu.Unlock()

		if !fired {
			// Allocate against the previous month's production
			target := period.AddMonths(-1)
			m.logger.Info("Triggering monthly recovery batch",
				zap.String("period", target.String()),
			)
			if err := m.scheduler.ScheduleRecoveryRun(target, now); err != nil {
				m.logger.Error("Failed to schedule recovery batch", zap.Error(err))
			}
		}
	}
}

// due reports whether now is at or past the given day and hour of the
// current month. Using "at or past" instead of an exact match means a
// restart later in the month still fires a batch that was missed.
func (m *MonthlyTrigger) due(now time.Time, day, hour int) bool {
	if now.Day() != day {
		return now.Day() > day
	}
	return now.Hour() >= hour
}
