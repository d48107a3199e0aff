package reminder

import (
	"context"
	"fmt"
	"time"

	"docnest/internal/model"
	"docnest/pkg/logger"
	"docnest/pkg/metrics"
	"docnest/pkg/util"

	"go.uber.org/zap"
)

const DefaultBatchSize = 100

type DispatchResult struct {
	Dispatched int
	// Failed counts notify errors; those reminders stay pending for the next tick.
	Failed int
}

// Dispatcher notifies and marks due reminders, one bounded batch per call.
type Dispatcher struct {
	store     Store
	notifier  Notifier
	logger    *zap.Logger
	batchSize int
}

func NewDispatcher(store Store, notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize sets the per-pass cap. Non-positive values keep the default.
func (d *Dispatcher) WithBatchSize(size int) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

// Dispatch handles up to batchSize reminders due at now in one unit of work.
// A notify failure only affects its own reminder.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) (DispatchResult, error) {
	var res DispatchResult
	log := logger.WithTrace(ctx, d.logger)

	tx, err := d.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	due, err := tx.FindDue(ctx, now, d.batchSize)
	if err != nil {
		return res, fmt.Errorf("find due reminders: %w", err)
	}
	if len(due) == 0 {
		return res, nil
	}

	log.Debug("Dispatching due reminders", zap.Int("count", len(due)))

	var dispatched []*model.Reminder
	for _, r := range due {
		if err := d.notifier.Notify(ctx, r.Notice()); err != nil {
			errType := util.ClassifyError(err)
			log.Warn("Failed to notify reminder, will retry next tick",
				zap.String("reminder_id", r.ID.String()),
				zap.String("document_id", r.DocumentID.String()),
				zap.Int("days_before", r.DaysBefore),
				zap.String("error_type", errType),
				zap.Error(err),
			)
			metrics.IncrementNotifyFailure(errType)
			res.Failed++
			continue
		}

		ok, err := tx.MarkDispatched(ctx, r.ID, now)
		if err != nil {
			// Nothing in this batch is committed; notified reminders will be notified again.
			return DispatchResult{Failed: res.Failed}, fmt.Errorf("mark reminder %s dispatched: %w", r.ID, err)
		}
		if ok {
			dispatched = append(dispatched, r)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return DispatchResult{Failed: res.Failed}, fmt.Errorf("commit: %w", err)
	}

	for _, r := range dispatched {
		metrics.IncrementDispatched()
		log.Info("Reminder dispatched",
			zap.String("reminder_id", r.ID.String()),
			zap.String("document_id", r.DocumentID.String()),
			zap.String("user_id", r.UserID.String()),
			zap.Int("days_before", r.DaysBefore),
		)
	}
	res.Dispatched = len(dispatched)
	return res, nil
}
