package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerEntryRepository defines the interface for ledger entry persistence
type LedgerEntryRepository interface {
	// FindByID finds a ledger entry by ID, correction log included
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByKey finds the one entry for a (contract, field, remittance, phase)
	FindByKey(ctx context.Context, key EntryKey) (*LedgerEntry, error)

	// ExistsByKey checks the one-entry-per-key uniqueness invariant
	ExistsByKey(ctx context.Context, key EntryKey) (bool, error)

	// FindDueForCorrection finds entries whose recognition date is on or
	// before the cutoff. Balance and annual-window filtering is a domain
	// rule applied by the scheduler over the fold, not by the query.
	FindDueForCorrection(ctx context.Context, recognizedOnOrBefore time.Time) ([]LedgerEntry, error)

	// FindOpenByField finds not-fully-recovered entries for a contract/field
	FindOpenByField(ctx context.Context, contractID, fieldID string) ([]LedgerEntry, error)

	// FindOpenBySharingGroup finds not-fully-recovered shared entries of a group
	FindOpenBySharingGroup(ctx context.Context, sharingGroup string) ([]LedgerEntry, error)

	// LatestPhase returns the most advanced recognition phase recorded
	// for a contract/field. ok is false when no entry exists yet.
	LatestPhase(ctx context.Context, contractID, fieldID string) (phase Phase, ok bool, err error)

	// Save creates or updates an entry together with its correction log
	Save(ctx context.Context, entry *LedgerEntry) error

	// SaveWithLock saves with optimistic locking; returns
	// CONCURRENCY_CONFLICT when the stored version moved
	SaveWithLock(ctx context.Context, entry *LedgerEntry) error

	// SaveAllWithLock saves several entries in one transaction with
	// optimistic locking, in deterministic ID order. Used by the
	// recovery allocator and the transfer handler so cross-entry
	// operations are all-or-nothing.
	SaveAllWithLock(ctx context.Context, entries []*LedgerEntry) error
}
