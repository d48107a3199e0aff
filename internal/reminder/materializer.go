package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docnest/internal/model"
	"docnest/pkg/logger"
	"docnest/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MaterializeResult struct {
	Created int
	// Skipped counts reminders another writer inserted first, plus catalog
	// rows that could not form a valid reminder.
	Skipped int
}

// Materializer inserts the reminders the policy calls for and that do not exist yet.
type Materializer struct {
	store  Store
	policy Policy
	logger *zap.Logger
}

func NewMaterializer(store Store, policy Policy, logger *zap.Logger) *Materializer {
	return &Materializer{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Materialize runs one pass for every offset. Each offset commits on its own;
// a failing offset does not stop the others and its error is joined into the result.
func (m *Materializer) Materialize(ctx context.Context, now time.Time) (MaterializeResult, error) {
	var (
		res  MaterializeResult
		errs []error
	)
	log := logger.WithTrace(ctx, m.logger)
	today := model.DateOf(now)

	for _, daysBefore := range m.policy.Offsets() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		target := model.AddDays(today, daysBefore)
		created, skipped, err := m.materializeOffset(ctx, log, now, target, daysBefore)
		if err != nil {
			log.Error("Failed to materialize reminders",
				zap.Int("days_before", daysBefore),
				zap.String("target_date", model.FormatDate(target)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("days_before=%d: %w", daysBefore, err))
			continue
		}

		res.Created += created
		res.Skipped += skipped
		metrics.AddMaterialized(daysBefore, created)
		if created > 0 || skipped > 0 {
			log.Info("Reminders materialized",
				zap.Int("days_before", daysBefore),
				zap.String("target_date", model.FormatDate(target)),
				zap.Int("created", created),
				zap.Int("skipped", skipped),
			)
		}
	}

	return res, errors.Join(errs...)
}

func (m *Materializer) materializeOffset(ctx context.Context, log *zap.Logger, now, target time.Time, daysBefore int) (int, int, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	docs, err := tx.DocumentsExpiringOn(ctx, target)
	if err != nil {
		return 0, 0, fmt.Errorf("find documents expiring on %s: %w", model.FormatDate(target), err)
	}
	if len(docs) == 0 {
		return 0, 0, nil
	}

	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	existing, err := tx.ExistingPairs(ctx, daysBefore, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("load existing reminders: %w", err)
	}

	created, skipped := 0, 0
	for _, doc := range docs {
		if _, ok := existing[doc.ID]; ok {
			continue
		}

		r, err := model.NewReminder(doc.UserID, doc.ID, doc.ExpiresOn, daysBefore, now)
		if err != nil {
			log.Warn("Skipping document that cannot carry a reminder",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err),
			)
			skipped++
			continue
		}

		if err := tx.Insert(ctx, r); err != nil {
			if errors.Is(err, ErrDuplicateReminder) {
				skipped++
				continue
			}
			return 0, 0, fmt.Errorf("insert reminder for document %s: %w", doc.ID, err)
		}
		created++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return created, skipped, nil
}
