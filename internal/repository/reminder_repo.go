package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docnest/internal/model"
	"docnest/internal/reminder"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReminderRepository is the Postgres reminder ledger. It implements reminder.Store.
type ReminderRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReminderRepository(db *pgxpool.Pool, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{db: db, logger: logger}
}

func (r *ReminderRepository) Begin(ctx context.Context) (reminder.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgReminderTx{tx: tx}, nil
}

// ListReminders returns reminders ordered by due time, optionally only pending ones.
func (r *ReminderRepository) ListReminders(ctx context.Context, pendingOnly bool, limit int) ([]*model.Reminder, error) {
	query := `
        SELECT id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at
        FROM reminders
        WHERE ($1 = false OR dispatched_at IS NULL)
        ORDER BY due_at, id
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, pendingOnly, limit)
	if err != nil {
		r.logger.Error("Failed to list reminders", zap.Error(err))
		return nil, err
	}
	return collectReminders(rows)
}

type pgReminderTx struct {
	tx pgx.Tx
}

func (t *pgReminderTx) DocumentsExpiringOn(ctx context.Context, date time.Time) ([]model.DocumentExpiry, error) {
	query := `
        SELECT id, user_id, expires_on
        FROM documents
        WHERE expires_on = $1
    `
	rows, err := t.tx.Query(ctx, query, model.DateOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentExpiry
	for rows.Next() {
		var d model.DocumentExpiry
		if err := rows.Scan(&d.ID, &d.UserID, &d.ExpiresOn); err != nil {
			return nil, err
		}
		d.ExpiresOn = model.DateOf(d.ExpiresOn)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// FindDue locks the returned rows; concurrent workers skip them until this
// transaction ends.
func (t *pgReminderTx) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error) {
	query := `
        SELECT id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at
        FROM reminders
        WHERE dispatched_at IS NULL AND due_at <= $1
        ORDER BY due_at, id
        LIMIT $2
        FOR UPDATE SKIP LOCKED
    `
	rows, err := t.tx.Query(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (t *pgReminderTx) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
        UPDATE reminders
        SET dispatched_at = $2
        WHERE id = $1 AND dispatched_at IS NULL
    `
	tag, err := t.tx.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgReminderTx) ExistingPairs(ctx context.Context, daysBefore int, documentIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	existing := make(map[uuid.UUID]struct{})
	if len(documentIDs) == 0 {
		return existing, nil
	}

	query := `
        SELECT document_id
        FROM reminders
        WHERE days_before = $1 AND document_id = ANY($2)
    `
	rows, err := t.tx.Query(ctx, query, daysBefore, documentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// Insert uses ON CONFLICT DO NOTHING so a lost race does not abort the transaction.
func (t *pgReminderTx) Insert(ctx context.Context, rem *model.Reminder) error {
	query := `
        INSERT INTO reminders (id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (document_id, days_before) DO NOTHING
    `
	tag, err := t.tx.Exec(ctx, query,
		rem.ID,
		rem.UserID,
		rem.DocumentID,
		model.DateOf(rem.ExpiresOn),
		rem.DaysBefore,
		rem.DueAt.UTC(),
		rem.CreatedAt.UTC(),
		rem.DispatchedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return reminder.ErrDuplicateReminder
	}
	return nil
}

func (t *pgReminderTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgReminderTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func collectReminders(rows pgx.Rows) ([]*model.Reminder, error) {
	defer rows.Close()

	var out []*model.Reminder
	for rows.Next() {
		var rem model.Reminder
		if err := rows.Scan(
			&rem.ID,
			&rem.UserID,
			&rem.DocumentID,
			&rem.ExpiresOn,
			&rem.DaysBefore,
			&rem.DueAt,
			&rem.CreatedAt,
			&rem.DispatchedAt,
		); err != nil {
			return nil, err
		}
		normalizeReminder(&rem)
		out = append(out, &rem)
	}
	return out, rows.Err()
}

func normalizeReminder(rem *model.Reminder) {
	rem.ExpiresOn = model.DateOf(rem.ExpiresOn)
	rem.DueAt = rem.DueAt.UTC()
	rem.CreatedAt = rem.CreatedAt.UTC()
	if rem.DispatchedAt != nil {
		at := rem.DispatchedAt.UTC()
		rem.DispatchedAt = &at
	}
}
