package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docnest/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DocumentRepository is the Postgres document catalog.
type DocumentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentRepository(db *pgxpool.Pool, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

const documentColumns = `id, user_id, subject_id, title, type, expires_on, created_at, updated_at,
        file_key, original_file_name, content_type, size_bytes`

const insertDocument = `
        INSERT INTO documents (` + documentColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

func documentArgs(d *model.Document) []any {
	args := []any{d.ID, d.UserID, d.SubjectID, d.Title, d.Type, d.ExpiresOn, d.CreatedAt.UTC(), d.UpdatedAt.UTC()}
	if d.File != nil {
		return append(args, d.File.FileKey, d.File.OriginalFileName, d.File.ContentType, d.File.SizeBytes)
	}
	return append(args, nil, nil, nil, nil)
}

func (r *DocumentRepository) Create(ctx context.Context, d *model.Document) error {
	r.logger.Debug("Inserting document",
		zap.String("document_id", d.ID.String()),
		zap.String("user_id", d.UserID.String()),
	)
	if _, err := r.db.Exec(ctx, insertDocument, documentArgs(d)...); err != nil {
		r.logger.Error("Failed to insert document", zap.String("document_id", d.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

// CreateMany inserts all documents in one transaction.
func (r *DocumentRepository) CreateMany(ctx context.Context, docs []*model.Document) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, d := range docs {
		batch.Queue(insertDocument, documentArgs(d)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *DocumentRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error) {
	query := `SELECT ` + documentColumns + `
        FROM documents
        WHERE id = $1 AND user_id = $2
    `
	d, err := scanDocument(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrDocumentNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.String("document_id", id.String()), zap.Error(err))
		return nil, err
	}
	return d, nil
}

// Update writes metadata and file columns of an existing document.
func (r *DocumentRepository) Update(ctx context.Context, d *model.Document) error {
	query := `
        UPDATE documents
        SET title = $3, type = $4, expires_on = $5, updated_at = $6,
            file_key = $7, original_file_name = $8, content_type = $9, size_bytes = $10
        WHERE id = $1 AND user_id = $2
    `
	args := documentArgs(d)
	tag, err := r.db.Exec(ctx, query,
		d.ID, d.UserID, d.Title, d.Type, d.ExpiresOn, d.UpdatedAt.UTC(),
		args[8], args[9], args[10], args[11],
	)
	if err != nil {
		r.logger.Error("Failed to update document", zap.String("document_id", d.ID.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

// List returns one page of the user's documents, newest first. f must be validated.
func (r *DocumentRepository) List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error) {
	where, args := listConditions(userID, f)

	var total int
	countQuery := `SELECT count(*) FROM documents WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count documents", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	args = append(args, f.PageSize, f.Offset())
	query := fmt.Sprintf(`SELECT %s
        FROM documents
        WHERE %s
        ORDER BY created_at DESC, id DESC
        LIMIT $%d OFFSET $%d
    `, documentColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.DocumentPage{
		Page:     f.Page,
		PageSize: f.PageSize,
		Total:    total,
		Items:    items,
	}, nil
}

func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}

// DeleteAll removes every reminder and document.
func (r *DocumentRepository) DeleteAll(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return tx.Commit(ctx)
}

// listConditions builds the WHERE clause for List and its positional arguments.
func listConditions(userID uuid.UUID, f model.DocumentFilter) (string, []any) {
	args := []any{userID}
	conds := []string{"user_id = $1"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		conds = append(conds, "title ILIKE '%' || "+arg(escapeLike(f.Query))+" || '%'")
	}
	if f.Type != "" {
		conds = append(conds, "lower(type) = lower("+arg(f.Type)+")")
	}
	if f.HasExpiryBound() {
		bound := []string{"expires_on IS NOT NULL"}
		if f.ExpiresBefore != nil {
			bound = append(bound, "expires_on <= "+arg(*f.ExpiresBefore))
		}
		if f.ExpiresAfter != nil {
			bound = append(bound, "expires_on >= "+arg(*f.ExpiresAfter))
		}
		if f.IncludeNoExpiry {
			conds = append(conds, "(expires_on IS NULL OR ("+strings.Join(bound, " AND ")+"))")
		} else {
			conds = append(conds, bound...)
		}
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		d                            model.Document
		fileKey, originalName, ctype *string
		sizeBytes                    *int64
	)
	if err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.SubjectID,
		&d.Title,
		&d.Type,
		&d.ExpiresOn,
		&d.CreatedAt,
		&d.UpdatedAt,
		&fileKey,
		&originalName,
		&ctype,
		&sizeBytes,
	); err != nil {
		return nil, err
	}
	if d.ExpiresOn != nil {
		date := model.DateOf(*d.ExpiresOn)
		d.ExpiresOn = &date
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if fileKey != nil {
		d.File = &model.FileMetadata{
			FileKey:          *fileKey,
			OriginalFileName: deref(originalName),
			ContentType:      deref(ctype),
			SizeBytes:        derefInt(sizeBytes),
		}
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
