package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docnest/internal/model"
	"docnest/internal/reminder"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the catalog and the reminder ledger in one SQLite file.
// It serves single-node deployments and tests. Instants are stored as unix
// microseconds, dates as YYYY-MM-DD text.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and the pragmas below are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Begin(ctx context.Context) (reminder.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteReminderTx{tx: tx}, nil
}

// ListReminders returns reminders ordered by due time, optionally only pending ones.
func (s *SQLiteStore) ListReminders(ctx context.Context, pendingOnly bool, limit int) ([]*model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at
		FROM reminders
		WHERE (? = 0 OR dispatched_at IS NULL)
		ORDER BY due_at, id
		LIMIT ?
	`, pendingOnly, limit)
	if err != nil {
		return nil, err
	}
	return collectSQLiteReminders(rows)
}

const sqliteInsertDocument = `
	INSERT INTO documents (id, user_id, subject_id, title, type, expires_on, created_at, updated_at,
		file_key, original_file_name, content_type, size_bytes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteDocument(ctx context.Context, db execer, d *model.Document) error {
	var fileKey, originalName, contentType, sizeBytes any
	if d.File != nil {
		fileKey, originalName, contentType, sizeBytes = d.File.FileKey, d.File.OriginalFileName, d.File.ContentType, d.File.SizeBytes
	}
	_, err := db.ExecContext(ctx, sqliteInsertDocument,
		d.ID.String(), d.UserID.String(), d.SubjectID.String(), d.Title, d.Type,
		nullableDate(d.ExpiresOn), d.CreatedAt.UnixMicro(), d.UpdatedAt.UnixMicro(),
		fileKey, originalName, contentType, sizeBytes,
	)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, d *model.Document) error {
	return insertSQLiteDocument(ctx, s.db, d)
}

func (s *SQLiteStore) CreateMany(ctx context.Context, docs []*model.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range docs {
		if err := insertSQLiteDocument(ctx, tx, d); err != nil {
			return fmt.Errorf("insert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

const sqliteDocumentColumns = `id, user_id, subject_id, title, type, expires_on, created_at, updated_at,
	file_key, original_file_name, content_type, size_bytes`

func (s *SQLiteStore) Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents WHERE id = ? AND user_id = ?`,
		id.String(), userID.String())
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDocumentNotFound
	}
	return d, err
}

func (s *SQLiteStore) Update(ctx context.Context, d *model.Document) error {
	var fileKey, originalName, contentType, sizeBytes any
	if d.File != nil {
		fileKey, originalName, contentType, sizeBytes = d.File.FileKey, d.File.OriginalFileName, d.File.ContentType, d.File.SizeBytes
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title = ?, type = ?, expires_on = ?, updated_at = ?,
			file_key = ?, original_file_name = ?, content_type = ?, size_bytes = ?
		WHERE id = ? AND user_id = ?
	`, d.Title, d.Type, nullableDate(d.ExpiresOn), d.UpdatedAt.UnixMicro(),
		fileKey, originalName, contentType, sizeBytes,
		d.ID.String(), d.UserID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

// List filters in memory with DocumentFilter.Matches: SQLite's lower() and LIKE
// only fold ASCII, while the Postgres catalog folds Unicode.
func (s *SQLiteStore) List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteDocumentColumns+` FROM documents WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []model.Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		if f.Matches(d) {
			matched = append(matched, *d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := []model.Document{}
	if start := f.Offset(); start < len(matched) {
		end := start + f.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		items = append(items, matched[start:end]...)
	}
	return &model.DocumentPage{
		Page:     f.Page,
		PageSize: f.PageSize,
		Total:    len(matched),
		Items:    items,
	}, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return tx.Commit()
}

type sqliteReminderTx struct {
	tx *sql.Tx
}

func (t *sqliteReminderTx) DocumentsExpiringOn(ctx context.Context, date time.Time) ([]model.DocumentExpiry, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, user_id, expires_on FROM documents WHERE expires_on = ?`,
		model.FormatDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentExpiry
	for rows.Next() {
		var (
			d         model.DocumentExpiry
			expiresOn string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &expiresOn); err != nil {
			return nil, err
		}
		if d.ExpiresOn, err = model.ParseDate(expiresOn); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (t *sqliteReminderTx) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at
		FROM reminders
		WHERE dispatched_at IS NULL AND due_at <= ?
		ORDER BY due_at, id
		LIMIT ?
	`, now.UnixMicro(), limit)
	if err != nil {
		return nil, err
	}
	return collectSQLiteReminders(rows)
}

func (t *sqliteReminderTx) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reminders SET dispatched_at = ? WHERE id = ? AND dispatched_at IS NULL`,
		at.UnixMicro(), id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *sqliteReminderTx) ExistingPairs(ctx context.Context, daysBefore int, documentIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	existing := make(map[uuid.UUID]struct{})
	if len(documentIDs) == 0 {
		return existing, nil
	}

	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, daysBefore)
	for _, id := range documentIDs {
		args = append(args, id.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")

	rows, err := t.tx.QueryContext(ctx,
		`SELECT document_id FROM reminders WHERE days_before = ? AND document_id IN (`+placeholders+`)`,
		args...)
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

func (t *sqliteReminderTx) Insert(ctx context.Context, r *model.Reminder) error {
	var dispatchedAt any
	if r.DispatchedAt != nil {
		dispatchedAt = r.DispatchedAt.UnixMicro()
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, document_id, expires_on, days_before, due_at, created_at, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, days_before) DO NOTHING
	`, r.ID.String(), r.UserID.String(), r.DocumentID.String(), model.FormatDate(r.ExpiresOn),
		r.DaysBefore, r.DueAt.UnixMicro(), r.CreatedAt.UnixMicro(), dispatchedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return reminder.ErrDuplicateReminder
	}
	return nil
}

func (t *sqliteReminderTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteReminderTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectSQLiteReminders(rows *sql.Rows) ([]*model.Reminder, error) {
	defer rows.Close()

	var out []*model.Reminder
	for rows.Next() {
		var (
			r                model.Reminder
			expiresOn        string
			dueAt, createdAt int64
			dispatchedAt     sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.DocumentID, &expiresOn, &r.DaysBefore,
			&dueAt, &createdAt, &dispatchedAt); err != nil {
			return nil, err
		}
		var err error
		if r.ExpiresOn, err = model.ParseDate(expiresOn); err != nil {
			return nil, err
		}
		r.DueAt = fromMicros(dueAt)
		r.CreatedAt = fromMicros(createdAt)
		if dispatchedAt.Valid {
			at := fromMicros(dispatchedAt.Int64)
			r.DispatchedAt = &at
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func scanSQLiteDocument(row rowScanner) (*model.Document, error) {
	var (
		d                                  model.Document
		expiresOn                          sql.NullString
		createdAt, updatedAt               int64
		fileKey, originalName, contentType sql.NullString
		sizeBytes                          sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.SubjectID, &d.Title, &d.Type, &expiresOn,
		&createdAt, &updatedAt, &fileKey, &originalName, &contentType, &sizeBytes); err != nil {
		return nil, err
	}
	if expiresOn.Valid {
		date, err := model.ParseDate(expiresOn.String)
		if err != nil {
			return nil, err
		}
		d.ExpiresOn = &date
	}
	d.CreatedAt = fromMicros(createdAt)
	d.UpdatedAt = fromMicros(updatedAt)
	if fileKey.Valid {
		d.File = &model.FileMetadata{
			FileKey:          fileKey.String,
			OriginalFileName: originalName.String,
			ContentType:      contentType.String,
			SizeBytes:        sizeBytes.Int64,
		}
	}
	return &d, nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return model.FormatDate(*t)
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
