package correction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEntryRepo struct {
	entries map[uuid.UUID]*ledger.LedgerEntry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[uuid.UUID]*ledger.LedgerEntry)}
}

func (r *fakeEntryRepo) put(e *ledger.LedgerEntry) {
	r.entries[e.ID] = e
}

func (r *fakeEntryRepo) get(id uuid.UUID) *ledger.LedgerEntry {
	return r.entries[id]
}

func (r *fakeEntryRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.LedgerEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

func (r *fakeEntryRepo) FindByKey(_ context.Context, key ledger.EntryKey) (*ledger.LedgerEntry, error) {
	for _, e := range r.entries {
		if e.Key() == key {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEntryRepo) ExistsByKey(ctx context.Context, key ledger.EntryKey) (bool, error) {
	_, err := r.FindByKey(ctx, key)
	if err == shared.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeEntryRepo) FindDueForCorrection(_ context.Context, recognizedOnOrBefore time.Time) ([]ledger.LedgerEntry, error) {
	var due []ledger.LedgerEntry
	for _, e := range r.entries {
		if !e.RecognitionDate.After(recognizedOnOrBefore) {
			due = append(due, *e)
		}
	}
	return due, nil
}

func (r *fakeEntryRepo) FindOpenByField(_ context.Context, contractID, fieldID string) ([]ledger.LedgerEntry, error) {
	var open []ledger.LedgerEntry
	for _, e := range r.entries {
		if e.ContractID == contractID && e.FieldID == fieldID && !e.FullyRecovered {
			open = append(open, *e)
		}
	}
	return open, nil
}

func (r *fakeEntryRepo) FindOpenBySharingGroup(_ context.Context, sharingGroup string) ([]ledger.LedgerEntry, error) {
	var open []ledger.LedgerEntry
	for _, e := range r.entries {
		if e.SharingGroup == sharingGroup && !e.FullyRecovered {
			open = append(open, *e)
		}
	}
	return open, nil
}

func (r *fakeEntryRepo) LatestPhase(_ context.Context, contractID, fieldID string) (ledger.Phase, bool, error) {
	latest := ledger.Phase("")
	found := false
	for _, e := range r.entries {
		if e.ContractID == contractID && e.FieldID == fieldID {
			if !found || e.Phase.Order() > latest.Order() {
				latest = e.Phase
				found = true
			}
		}
	}
	return latest, found, nil
}

func (r *fakeEntryRepo) Save(_ context.Context, entry *ledger.LedgerEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeEntryRepo) SaveWithLock(ctx context.Context, entry *ledger.LedgerEntry) error {
	return r.Save(ctx, entry)
}

func (r *fakeEntryRepo) SaveAllWithLock(ctx context.Context, entries []*ledger.LedgerEntry) error {
	for _, e := range entries {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type fakeResolver struct {
	rates map[string]decimal.Decimal // "KIND-2023-01" -> percent
}

func (f *fakeResolver) Resolve(_ context.Context, kind indexes.Kind, year int, month time.Month) (indexes.Rate, error) {
	percent, ok := f.rates[fmt.Sprintf("%s-%04d-%02d", kind, year, int(month))]
	if !ok {
		return indexes.Rate{}, shared.ErrIndexNotFound
	}
	return indexes.Rate{Kind: kind, Year: year, Month: month, Percent: percent}, nil
}

type fakeIdempotency struct {
	processed map[string]bool
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{processed: make(map[string]bool)}
}

func (f *fakeIdempotency) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.processed[key] {
		return false, nil
	}
	f.processed[key] = true
	return true, nil
}

func (f *fakeIdempotency) IsProcessed(_ context.Context, key string) (bool, error) {
	return f.processed[key], nil
}

func (f *fakeIdempotency) Close() error { return nil }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestEntry(t *testing.T, remittance string, recognized string, recognitionDate time.Time) *ledger.LedgerEntry {
	t.Helper()
	entry, err := ledger.NewLedgerEntry(
		ledger.EntryKey{ContractID: "C-1", FieldID: "F-1", RemittanceID: remittance, Phase: ledger.PhaseMEN},
		ledger.CostOriginExclusive,
		"",
		recognitionDate,
		ledger.GenesisAmounts{
			TotalLaunched:          dec(recognized),
			RecognizedBase:         dec(recognized),
			RecognizedWithOverhead: dec(recognized),
			Recoverable:            dec(recognized),
		},
		ledger.OverheadBreakdown{},
	)
	require.NoError(t, err)
	return entry
}

func newTestService(t *testing.T, repo *fakeEntryRepo, resolver *fakeResolver, idem *fakeIdempotency) *Service {
	t.Helper()
	svc, err := NewService(repo, resolver, idem, Config{
		IndexKind:      indexes.KindIPCA,
		IdempotencyTTL: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestAnnualWindowStart(t *testing.T) {
	tests := []struct {
		name        string
		recognition ledger.Period
		asOf        ledger.Period
		want        time.Time
	}{
		{
			name:        "first anniversary just crossed",
			recognition: ledger.NewPeriod(2022, time.January),
			asOf:        ledger.NewPeriod(2023, time.February),
			want:        time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "exactly on anniversary month",
			recognition: ledger.NewPeriod(2022, time.January),
			asOf:        ledger.NewPeriod(2023, time.January),
			want:        time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "second cycle",
			recognition: ledger.NewPeriod(2021, time.June),
			asOf:        ledger.NewPeriod(2023, time.July),
			want:        time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "month before second anniversary stays in first window",
			recognition: ledger.NewPeriod(2022, time.March),
			asOf:        ledger.NewPeriod(2024, time.February),
			want:        time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, annualWindowStart(tt.recognition, tt.asOf))
		})
	}
}

func TestRunMonthlyCorrection_AppendsOnceAfterOneYear(t *testing.T) {
	repo := newFakeEntryRepo()
	entry := newTestEntry(t, "R-1", "1000000", time.Date(2022, time.January, 15, 0, 0, 0, 0, time.UTC))
	repo.put(entry)

	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2023-01": dec("5"),
	}}
	idem := newFakeIdempotency()
	svc := newTestService(t, repo, resolver, idem)

	asOf := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.RunMonthlyCorrection(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Corrected, 1)
	assert.Empty(t, report.Failed)
	assert.True(t, report.Corrected[0].ValueDelta.Equal(dec("50000")))

	stored := repo.get(entry.ID)
	assert.True(t, stored.OutstandingBalance().Equal(dec("1050000")))

	require.Len(t, stored.Corrections, 1)
	c := stored.Corrections[0]
	assert.Equal(t, ledger.CorrectionTypeIndex, c.Type)
	assert.Equal(t, indexes.KindIPCA, c.IndexKind)
	assert.Equal(t, time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC), c.EffectiveDate)
	assert.True(t, c.AccumulatedIndex.Equal(dec("0.05")))
	assert.True(t, c.AccumulatedValue.Equal(dec("50000")))

	// Re-running for the same as-of date appends nothing
	report, err = svc.RunMonthlyCorrection(context.Background(), asOf)
	require.NoError(t, err)
	assert.True(t, report.AlreadyProcessed)
	assert.Len(t, repo.get(entry.ID).Corrections, 1)
}

func TestRunMonthlyCorrection_SkipsEntryAlreadyCorrectedInWindow(t *testing.T) {
	repo := newFakeEntryRepo()
	entry := newTestEntry(t, "R-1", "1000000", time.Date(2022, time.January, 15, 0, 0, 0, 0, time.UTC))
	repo.put(entry)

	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2023-01": dec("5"),
	}}
	idem := newFakeIdempotency()
	svc := newTestService(t, repo, resolver, idem)

	_, err := svc.RunMonthlyCorrection(context.Background(), time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, repo.get(entry.ID).Corrections, 1)

	// Next month is a different idempotency key but the same annual
	// window: the entry is skipped, not corrected twice.
	report, err := svc.RunMonthlyCorrection(context.Background(), time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, report.AlreadyProcessed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkipAlreadyCorrected, report.Skipped[0].Reason)
	assert.Len(t, repo.get(entry.ID).Corrections, 1)
}

func TestRunMonthlyCorrection_ExcludesRecentAndZeroBalance(t *testing.T) {
	repo := newFakeEntryRepo()

	recent := newTestEntry(t, "R-RECENT", "500000", time.Date(2022, time.August, 10, 0, 0, 0, 0, time.UTC))
	repo.put(recent)

	zeroed := newTestEntry(t, "R-ZERO", "200000", time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, zeroed.AppendCorrection(
		ledger.NewRecovery(dec("200000"), time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC))))
	repo.put(zeroed)

	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2023-02": dec("4"),
		"IPCA-2022-05": dec("4"),
	}}
	svc := newTestService(t, repo, resolver, newFakeIdempotency())

	report, err := svc.RunMonthlyCorrection(context.Background(), time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.Corrected)
	assert.Empty(t, report.Failed)

	// The recent entry never reached the query; the zeroed one was
	// selected and skipped by the zero-balance rule.
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, zeroed.ID, report.Skipped[0].EntryID)
	assert.Equal(t, SkipZeroBalance, report.Skipped[0].Reason)
	assert.Empty(t, recent.Corrections)
	assert.Len(t, zeroed.Corrections, 1)
}

func TestRunMonthlyCorrection_MissingIndexIsolatedPerEntry(t *testing.T) {
	repo := newFakeEntryRepo()
	ok := newTestEntry(t, "R-OK", "100000", time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC))
	missing := newTestEntry(t, "R-MISS", "100000", time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC))
	repo.put(ok)
	repo.put(missing)

	// Rate published for the first entry's window only
	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2023-01": dec("5"),
	}}
	idem := newFakeIdempotency()
	svc := newTestService(t, repo, resolver, idem)

	asOf := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.RunMonthlyCorrection(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Corrected, 1)
	assert.Equal(t, ok.ID, report.Corrected[0].EntryID)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, missing.ID, report.Failed[0].EntryID)
	assert.Empty(t, repo.get(missing.ID).Corrections)

	// A partial run stays retryable: once the missing rate is published
	// the failed entry is corrected and the succeeded one is skipped.
	resolver.rates["IPCA-2022-06"] = dec("3")
	report, err = svc.RunMonthlyCorrection(context.Background(), asOf)
	require.NoError(t, err)
	assert.False(t, report.AlreadyProcessed)
	require.Len(t, report.Corrected, 1)
	assert.Equal(t, missing.ID, report.Corrected[0].EntryID)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkipAlreadyCorrected, report.Skipped[0].Reason)
	assert.Len(t, repo.get(ok.ID).Corrections, 1)
	assert.Len(t, repo.get(missing.ID).Corrections, 1)
}

func TestRunMonthlyCorrection_CorrectsNegativeBalance(t *testing.T) {
	repo := newFakeEntryRepo()
	entry := newTestEntry(t, "R-NEG", "100000", time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC))
	// Over-invalidated down to a negative balance
	require.NoError(t, entry.AppendCorrection(
		ledger.NewManualAdjustment(dec("-150000"), "retroactive invalidation", time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC))))
	repo.put(entry)

	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2023-03": dec("10"),
	}}
	svc := newTestService(t, repo, resolver, newFakeIdempotency())

	report, err := svc.RunMonthlyCorrection(context.Background(), time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Corrected, 1)
	assert.True(t, report.Corrected[0].ValueDelta.Equal(dec("-5000")))
	assert.True(t, repo.get(entry.ID).OutstandingBalance().Equal(dec("-55000")))
}

func TestRunMonthlyCorrection_RateMonthOffset(t *testing.T) {
	repo := newFakeEntryRepo()
	entry := newTestEntry(t, "R-1", "100000", time.Date(2022, time.January, 15, 0, 0, 0, 0, time.UTC))
	repo.put(entry)

	// Only the month before the anniversary is published
	resolver := &fakeResolver{rates: map[string]decimal.Decimal{
		"IPCA-2022-12": dec("6"),
	}}
	svc, err := NewService(repo, resolver, newFakeIdempotency(), Config{
		IndexKind:       indexes.KindIPCA,
		RateMonthOffset: -1,
		IdempotencyTTL:  time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	report, err := svc.RunMonthlyCorrection(context.Background(), time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Corrected, 1)
	assert.True(t, report.Corrected[0].ValueDelta.Equal(dec("6000")))
}

func TestNewService_RejectsUnknownIndexKind(t *testing.T) {
	_, err := NewService(newFakeEntryRepo(), &fakeResolver{}, newFakeIdempotency(), Config{
		IndexKind: indexes.Kind("SELIC"),
	}, zap.NewNop())
	require.Error(t, err)
}
