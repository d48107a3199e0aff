package reminder

import (
	"context"
	"errors"
	"time"

	"docnest/internal/model"

	"github.com/google/uuid"
)

// ErrDuplicateReminder is returned by Tx.Insert when the (document, days-before)
// pair already has a reminder.
var ErrDuplicateReminder = errors.New("reminder already exists for document and days before")

// Store opens units of work over the catalog and the reminder ledger.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. Rollback after Commit is a no-op.
type Tx interface {
	// DocumentsExpiringOn lists documents whose expiry equals date.
	DocumentsExpiringOn(ctx context.Context, date time.Time) ([]model.DocumentExpiry, error)
	// FindDue returns pending reminders with DueAt <= now, oldest first, at most limit.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error)
	// MarkDispatched sets dispatched_at if it is still null and reports whether it did.
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ExistingPairs returns the subset of documentIDs that already have a reminder for daysBefore.
	ExistingPairs(ctx context.Context, daysBefore int, documentIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	// Insert stores r or returns ErrDuplicateReminder.
	Insert(ctx context.Context, r *model.Reminder) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Notifier delivers a due reminder. A returned error leaves the reminder pending.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice) error
}
