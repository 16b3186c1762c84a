package integration

import (
	"context"
	"testing"
	"time"

	correctionapp "github.com/sgpp/costrecovery/internal/application/correction"
	ledgerapp "github.com/sgpp/costrecovery/internal/application/ledger"
	recoveryapp "github.com/sgpp/costrecovery/internal/application/recovery"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/infrastructure/cache"
	"github.com/sgpp/costrecovery/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type ledgerStack struct {
	entries     *persistence.GormLedgerEntryRepository
	rates       *persistence.GormIndexRateRepository
	reports     *persistence.GormProductionReportRepository
	ledger      *ledgerapp.Service
	corrections *correctionapp.Service
	recoveries  *recoveryapp.Service
}

func newLedgerStack(t *testing.T, tdb *TestDB) *ledgerStack {
	t.Helper()

	entries := persistence.NewGormLedgerEntryRepository(tdb.DB)
	rates := persistence.NewGormIndexRateRepository(tdb.DB)
	reports := persistence.NewGormProductionReportRepository(tdb.DB)

	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	bound := dec("10000")
	table := ledger.OverheadTable{
		ExplorationRate: dec("0.1"),
		Bands: []ledger.VolumeBand{
			{UpTo: &bound, Rate: dec("0.05")},
			{UpTo: nil, Rate: dec("0.03")},
		},
	}

	log := zap.NewNop()
	ledgerSvc, err := ledgerapp.NewService(entries, table, log)
	require.NoError(t, err)

	correctionSvc, err := correctionapp.NewService(entries, rates, idempotency, correctionapp.DefaultConfig(), log)
	require.NoError(t, err)

	recoverySvc := recoveryapp.NewService(entries, reports, idempotency, recoveryapp.DefaultConfig(), log)

	return &ledgerStack{
		entries:     entries,
		rates:       rates,
		reports:     reports,
		ledger:      ledgerSvc,
		corrections: correctionSvc,
		recoveries:  recoverySvc,
	}
}

// TestLedgerLifecycle walks one entry through the full cycle:
// recognition, annual correction, and recovery down to a zero balance.
func TestLedgerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	stack := newLedgerStack(t, tdb)
	ctx := context.Background()

	// Recognition: 100,000 exploration base carries 10% overhead
	entry, err := stack.ledger.RegisterRecognition(ctx, ledgerapp.RecognitionInput{
		ContractID:      "BM-S-11",
		FieldID:         "MERO",
		RemittanceID:    "REM-2022-01",
		Phase:           ledger.PhaseMEN,
		CostOrigin:      ledger.CostOriginExclusive,
		RecognitionDate: time.Date(2022, time.January, 15, 0, 0, 0, 0, time.UTC),
		TotalLaunched:   dec("120000"),
		RecognizedBase:  dec("100000"),
		Unrecognized:    dec("20000"),
		NonRecoverable:  dec("0"),
		ExplorationBase: dec("100000"),
		ProductionBase:  dec("0"),
	})
	require.NoError(t, err)
	assert.True(t, entry.Genesis.RecognizedWithOverhead.Equal(dec("110000")))
	assert.True(t, entry.OutstandingBalance().Equal(dec("110000")))

	// Publish the index for the second annual window's reference month
	require.NoError(t, stack.rates.Save(ctx, indexes.Rate{
		Kind:    indexes.KindIPCA,
		Year:    2023,
		Month:   time.January,
		Percent: dec("5"),
	}))

	// Thirteen months after recognition the entry is due its first
	// annual correction: 110,000 * 5% = 5,500
	asOf := time.Date(2023, time.February, 10, 3, 0, 0, 0, time.UTC)
	runReport, err := stack.corrections.RunMonthlyCorrection(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, runReport.Corrected, 1)
	require.Empty(t, runReport.Failed)
	assert.True(t, runReport.Corrected[0].BalanceAfter.Equal(dec("115500")))

	// Re-running the same period appends nothing
	runReport, err = stack.corrections.RunMonthlyCorrection(ctx, asOf)
	require.NoError(t, err)
	assert.True(t, runReport.AlreadyProcessed)

	reloaded, err := stack.entries.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Corrections, 1)
	assert.Equal(t, ledger.CorrectionTypeIndex, reloaded.Corrections[0].Type)
	assert.True(t, reloaded.OutstandingBalance().Equal(dec("115500")))

	// March production funds a partial recovery
	require.NoError(t, stack.reports.Save(ctx, production.Report{
		ContractID: "BM-S-11",
		FieldID:    "MERO",
		Period:     ledger.NewPeriod(2023, time.March),
		Volume:     dec("900000"),
		Capacity:   dec("50000"),
	}))

	recReport, err := stack.recoveries.RunMonthlyRecovery(ctx, "BM-S-11", "MERO", ledger.NewPeriod(2023, time.March))
	require.NoError(t, err)
	assert.True(t, recReport.CapacityUsed.Equal(dec("50000")))
	assert.True(t, recReport.CapacityRemaining.IsZero())

	reloaded, err = stack.entries.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.OutstandingBalance().Equal(dec("65500")))
	assert.False(t, reloaded.FullyRecovered)

	// April capacity covers the rest; the surplus stays unused
	require.NoError(t, stack.reports.Save(ctx, production.Report{
		ContractID: "BM-S-11",
		FieldID:    "MERO",
		Period:     ledger.NewPeriod(2023, time.April),
		Volume:     dec("910000"),
		Capacity:   dec("70000"),
	}))

	recReport, err = stack.recoveries.RunMonthlyRecovery(ctx, "BM-S-11", "MERO", ledger.NewPeriod(2023, time.April))
	require.NoError(t, err)
	assert.True(t, recReport.CapacityUsed.Equal(dec("65500")))
	assert.True(t, recReport.CapacityRemaining.Equal(dec("4500")))

	reloaded, err = stack.entries.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.OutstandingBalance().IsZero())
	assert.True(t, reloaded.FullyRecovered)

	// The ledger is append-only: every event is still on the log
	require.Len(t, reloaded.Corrections, 3)
}

// TestSharedRecoveryAcrossFields verifies that shared-origin entries
// are funded by group contributions from each member field.
func TestSharedRecoveryAcrossFields(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	stack := newLedgerStack(t, tdb)
	ctx := context.Background()

	shared, err := stack.ledger.RegisterRecognition(ctx, ledgerapp.RecognitionInput{
		ContractID:      "BM-S-11",
		FieldID:         "MERO",
		RemittanceID:    "REM-2022-02",
		Phase:           ledger.PhaseMEN,
		CostOrigin:      ledger.CostOriginSharedReservoir,
		SharingGroup:    "RSV-MARLIM",
		RecognitionDate: time.Date(2022, time.February, 1, 0, 0, 0, 0, time.UTC),
		TotalLaunched:   dec("40000"),
		RecognizedBase:  dec("40000"),
		Unrecognized:    dec("0"),
		NonRecoverable:  dec("0"),
		ExplorationBase: dec("40000"),
		ProductionBase:  dec("0"),
	})
	require.NoError(t, err)

	require.NoError(t, stack.reports.Save(ctx, production.Report{
		ContractID: "BM-S-11",
		FieldID:    "MERO",
		Period:     ledger.NewPeriod(2022, time.June),
		Volume:     dec("500000"),
		Capacity:   dec("30000"),
	}))

	recReport, err := stack.recoveries.RunMonthlyRecovery(ctx, "BM-S-11", "MERO", ledger.NewPeriod(2022, time.June))
	require.NoError(t, err)
	assert.True(t, recReport.CapacityUsed.Equal(dec("30000")))

	reloaded, err := stack.entries.FindByID(ctx, shared.ID)
	require.NoError(t, err)
	// 40,000 + 10% overhead = 44,000; 30,000 recovered leaves 14,000
	assert.True(t, reloaded.OutstandingBalance().Equal(dec("14000")))
	require.Len(t, reloaded.Corrections, 1)
	assert.Equal(t, ledger.CorrectionTypeRecovery, reloaded.Corrections[0].Type)
}
