package recovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the allocator settings
type Config struct {
	// IdempotencyTTL bounds how long a completed pass key is remembered
	IdempotencyTTL time.Duration
}

// DefaultConfig returns the default allocator configuration
func DefaultConfig() Config {
	return Config{IdempotencyTTL: 45 * 24 * time.Hour}
}

// Service is the monthly recovery allocator. One pass distributes a
// field's reported recovery capacity for a period across its eligible
// ledger entries: negative balances are compensated first, exclusive
// entries are funded directly from the field's capacity, and whatever
// remains becomes the field's contribution to its sharing groups,
// split between groups by outstanding-balance weight.
type Service struct {
	entries     ledger.LedgerEntryRepository
	reports     production.Source
	idempotency shared.IdempotencyStore
	locks       *groupLocks
	cfg         Config
	log         *zap.Logger
}

// NewService creates a new recovery allocator service
func NewService(
	entries ledger.LedgerEntryRepository,
	reports production.Source,
	idempotency shared.IdempotencyStore,
	cfg Config,
	log *zap.Logger,
) *Service {
	return &Service{
		entries:     entries,
		reports:     reports,
		idempotency: idempotency,
		locks:       newGroupLocks(),
		cfg:         cfg,
		log:         log,
	}
}

// AllocationKind classifies one allocation step in a run report
type AllocationKind string

const (
	AllocationCompensation AllocationKind = "COMPENSATION"
	AllocationExclusive    AllocationKind = "EXCLUSIVE"
	AllocationShared       AllocationKind = "SHARED"
)

// Allocation records one recovery event appended during a pass
type Allocation struct {
	EntryID        uuid.UUID       `json:"entry_id"`
	Kind           AllocationKind  `json:"kind"`
	SharingGroup   string          `json:"sharing_group,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	FullyRecovered bool            `json:"fully_recovered"`
}

// RunReport is the structured result of one allocator pass
type RunReport struct {
	ContractID        string          `json:"contract_id"`
	FieldID           string          `json:"field_id"`
	Period            string          `json:"period"`
	AlreadyProcessed  bool            `json:"already_processed"`
	Capacity          decimal.Decimal `json:"capacity"`
	CapacityUsed      decimal.Decimal `json:"capacity_used"`
	CapacityRemaining decimal.Decimal `json:"capacity_remaining"`
	Allocations       []Allocation    `json:"allocations"`
}

// passKey is the idempotency key for one contract/field/period pass
func passKey(contractID, fieldID string, period ledger.Period) string {
	return fmt.Sprintf("recovery:%s:%s:%s", contractID, fieldID, period)
}

// fundedByKey identifies the producing field on the recovery events a
// pass appends
func fundedByKey(contractID, fieldID string) string {
	return contractID + "/" + fieldID
}

// pass carries the mutable state of one allocation pass: the deduped
// entry registry, the balance snapshot taken at pass start, and the
// per-entry recovered running totals.
type pass struct {
	registry  map[uuid.UUID]*ledger.LedgerEntry
	balances  map[uuid.UUID]decimal.Decimal
	recovered map[uuid.UUID]decimal.Decimal
	touched   map[uuid.UUID]bool
	effective time.Time
	fundedBy  string
	remaining decimal.Decimal
	report    *RunReport
}

func (p *pass) add(entries []ledger.LedgerEntry) {
	for i := range entries {
		e := &entries[i]
		if _, ok := p.registry[e.ID]; ok {
			continue
		}
		snap := e.CurrentState()
		p.registry[e.ID] = e
		p.balances[e.ID] = snap.RecognizedWithOverhead
		p.recovered[e.ID] = snap.TotalRecovered
	}
}

// allocate appends one recovery event to an entry and updates the pass
// bookkeeping. A negative amount compensates a negative balance.
func (p *pass) allocate(e *ledger.LedgerEntry, amount decimal.Decimal, kind AllocationKind, group string) error {
	// The pass runs in arrears: the event is anchored to the production
	// period while the log head may already hold the following month's
	// index correction, so the append is always a backfill.
	c := ledger.NewRecovery(amount, p.effective)
	c.Backfill = true
	c.FundedBy = p.fundedBy
	c.TotalRecoveredToDate = p.recovered[e.ID].Add(amount)
	if err := e.AppendCorrection(c); err != nil {
		return err
	}

	p.balances[e.ID] = p.balances[e.ID].Sub(amount)
	p.recovered[e.ID] = c.TotalRecoveredToDate
	p.remaining = p.remaining.Sub(amount.Abs())
	p.touched[e.ID] = true

	p.report.Allocations = append(p.report.Allocations, Allocation{
		EntryID:        e.ID,
		Kind:           kind,
		SharingGroup:   group,
		Amount:         amount,
		BalanceAfter:   p.balances[e.ID],
		FullyRecovered: e.FullyRecovered,
	})
	return nil
}

// oldestFirst orders entries by recognition date, ties broken by entry
// ID, so allocation order is deterministic across runs
func oldestFirst(entries []*ledger.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.RecognitionDate.Equal(b.RecognitionDate) {
			return a.RecognitionDate.Before(b.RecognitionDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

// RunMonthlyRecovery executes one allocator pass for a contract/field
// and period. The pass is all-or-nothing: every touched entry is saved
// in a single transaction, and a completed pass is remembered so a
// re-trigger for the same period appends nothing.
func (s *Service) RunMonthlyRecovery(ctx context.Context, contractID, fieldID string, period ledger.Period) (*RunReport, error) {
	report := &RunReport{
		ContractID:        contractID,
		FieldID:           fieldID,
		Period:            period.String(),
		Capacity:          decimal.Zero,
		CapacityUsed:      decimal.Zero,
		CapacityRemaining: decimal.Zero,
	}

	key := passKey(contractID, fieldID, period)
	processed, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check pass key: %w", err)
	}
	if processed {
		s.log.Info("recovery pass already completed",
			zap.String("contract_id", contractID),
			zap.String("field_id", fieldID),
			zap.String("period", period.String()))
		report.AlreadyProcessed = true
		return report, nil
	}

	prodReport, err := s.reports.Get(ctx, contractID, fieldID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get production report for %s/%s %s: %w", contractID, fieldID, period, err)
	}
	report.Capacity = prodReport.Capacity
	report.CapacityRemaining = prodReport.Capacity

	// Single-writer-per-group discipline: hold the field lock and every
	// sharing group lock for the duration of the pass, then take the
	// balance snapshot the whole allocation is computed from.
	unlock := s.locks.lockAll([]string{"field:" + contractID + "/" + fieldID})
	own, err := s.entries.FindOpenByField(ctx, contractID, fieldID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to load open entries: %w", err)
	}

	groups := make([]string, 0)
	seen := make(map[string]bool)
	for i := range own {
		if own[i].CostOrigin.IsShared() && !seen[own[i].SharingGroup] {
			seen[own[i].SharingGroup] = true
			groups = append(groups, own[i].SharingGroup)
		}
	}
	sort.Strings(groups)

	lockKeys := []string{"field:" + contractID + "/" + fieldID}
	for _, g := range groups {
		lockKeys = append(lockKeys, "group:"+g)
	}
	unlock()
	unlock = s.locks.lockAll(lockKeys)
	defer unlock()

	// Reload under the full lock set so the snapshot is consistent
	own, err = s.entries.FindOpenByField(ctx, contractID, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open entries: %w", err)
	}

	p := &pass{
		registry:  make(map[uuid.UUID]*ledger.LedgerEntry),
		balances:  make(map[uuid.UUID]decimal.Decimal),
		recovered: make(map[uuid.UUID]decimal.Decimal),
		touched:   make(map[uuid.UUID]bool),
		effective: period.FirstDay(),
		fundedBy:  fundedByKey(contractID, fieldID),
		remaining: prodReport.Capacity,
		report:    report,
	}
	p.add(own)

	groupMembers := make(map[string][]*ledger.LedgerEntry)
	for _, g := range groups {
		members, err := s.entries.FindOpenBySharingGroup(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("failed to load sharing group %s: %w", g, err)
		}
		p.add(members)
		for i := range members {
			groupMembers[g] = append(groupMembers[g], p.registry[members[i].ID])
		}
	}

	// The idempotency store is only a fast path; the ledger itself is
	// the durable record of a completed pass. A recovery event funded
	// by this field inside the period means the allocation already ran,
	// even if the store restarted or the key's TTL lapsed.
	periodEnd := period.AddMonths(1).FirstDay()
	for _, e := range p.registry {
		if e.RecoveredInPeriod(p.fundedBy, p.effective, periodEnd) {
			s.log.Info("recovery pass already recorded in ledger",
				zap.String("contract_id", contractID),
				zap.String("field_id", fieldID),
				zap.String("period", period.String()))
			report.AlreadyProcessed = true
			return report, nil
		}
	}

	if err := s.compensateNegatives(p); err != nil {
		return nil, err
	}
	if err := s.allocateExclusive(p, own); err != nil {
		return nil, err
	}
	if err := s.allocateShared(p, groups, groupMembers); err != nil {
		return nil, err
	}

	report.CapacityUsed = report.Capacity.Sub(p.remaining)
	report.CapacityRemaining = p.remaining

	touched := make([]*ledger.LedgerEntry, 0, len(p.touched))
	for id := range p.touched {
		touched = append(touched, p.registry[id])
	}
	sort.Slice(touched, func(i, j int) bool {
		return touched[i].ID.String() < touched[j].ID.String()
	})
	if len(touched) > 0 {
		if err := s.entries.SaveAllWithLock(ctx, touched); err != nil {
			return nil, fmt.Errorf("failed to save allocation pass: %w", err)
		}
	}

	if _, err := s.idempotency.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn("failed to mark recovery pass processed", zap.Error(err))
	}

	s.log.Info("recovery pass finished",
		zap.String("contract_id", contractID),
		zap.String("field_id", fieldID),
		zap.String("period", period.String()),
		zap.Int("allocations", len(report.Allocations)),
		zap.String("capacity_used", report.CapacityUsed.String()))

	return report, nil
}

// compensateNegatives offsets every negative balance in the pass
// against available capacity before any positive allocation, oldest
// first. An entry offset exactly to zero flips fullyRecovered even if
// it never carried a positive balance.
func (s *Service) compensateNegatives(p *pass) error {
	negatives := make([]*ledger.LedgerEntry, 0)
	for id, bal := range p.balances {
		if bal.IsNegative() {
			negatives = append(negatives, p.registry[id])
		}
	}
	oldestFirst(negatives)

	for _, e := range negatives {
		if !p.remaining.IsPositive() {
			break
		}
		need := p.balances[e.ID].Neg()
		offset := decimal.Min(need, p.remaining)
		if err := p.allocate(e, offset.Neg(), AllocationCompensation, e.SharingGroup); err != nil {
			return fmt.Errorf("failed to compensate entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// allocateExclusive funds the field's exclusive-origin entries directly
// from its capacity, oldest first, clipped to each outstanding balance
func (s *Service) allocateExclusive(p *pass, own []ledger.LedgerEntry) error {
	eligible := make([]*ledger.LedgerEntry, 0)
	for i := range own {
		e := p.registry[own[i].ID]
		if e.CostOrigin == ledger.CostOriginExclusive && p.balances[e.ID].IsPositive() {
			eligible = append(eligible, e)
		}
	}
	oldestFirst(eligible)

	for _, e := range eligible {
		if !p.remaining.IsPositive() {
			break
		}
		alloc := decimal.Min(p.balances[e.ID], p.remaining)
		if err := p.allocate(e, alloc, AllocationExclusive, ""); err != nil {
			return fmt.Errorf("failed to allocate to entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// allocateShared distributes what remains of the field's capacity to
// its sharing groups. When the field participates in several groups,
// its contribution is prorated between them by aggregate outstanding
// balance; inside each group the pool is spent oldest first.
func (s *Service) allocateShared(p *pass, groups []string, members map[string][]*ledger.LedgerEntry) error {
	if len(groups) == 0 || !p.remaining.IsPositive() {
		return nil
	}

	weights := make(map[string]decimal.Decimal, len(groups))
	total := decimal.Zero
	for _, g := range groups {
		w := decimal.Zero
		for _, e := range members[g] {
			if bal := p.balances[e.ID]; bal.IsPositive() {
				w = w.Add(bal)
			}
		}
		weights[g] = w
		total = total.Add(w)
	}
	if !total.IsPositive() {
		return nil
	}

	contribution := p.remaining
	for i, g := range groups {
		if !p.remaining.IsPositive() {
			break
		}
		pool := p.remaining
		if i < len(groups)-1 {
			// Last group takes the remainder so proration never strands
			// capacity to rounding
			pool = decimal.Min(contribution.Mul(weights[g]).Div(total), p.remaining)
		}

		eligible := make([]*ledger.LedgerEntry, 0, len(members[g]))
		for _, e := range members[g] {
			if p.balances[e.ID].IsPositive() {
				eligible = append(eligible, e)
			}
		}
		oldestFirst(eligible)

		for _, e := range eligible {
			if !pool.IsPositive() {
				break
			}
			alloc := decimal.Min(p.balances[e.ID], pool)
			if err := p.allocate(e, alloc, AllocationShared, g); err != nil {
				return fmt.Errorf("failed to allocate to entry %s: %w", e.ID, err)
			}
			pool = pool.Sub(alloc)
		}
	}
	return nil
}
