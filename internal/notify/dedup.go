package notify

import (
	"context"
	"fmt"
	"time"

	"docnest/internal/model"
	"docnest/internal/reminder"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyValue is the part of *redis.Client the dedup guard uses.
type KeyValue interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DedupNotifier claims a reminder in Redis before notifying, so two workers
// that picked up the same reminder notify once. If Redis is unavailable the
// notice goes through.
type DedupNotifier struct {
	next   reminder.Notifier
	rdb    KeyValue
	ttl    time.Duration
	logger *zap.Logger
}

func NewDedupNotifier(next reminder.Notifier, rdb KeyValue, ttl time.Duration, logger *zap.Logger) *DedupNotifier {
	return &DedupNotifier{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(notice model.Notice) string {
	return fmt.Sprintf("dedup:reminder:%s", notice.ReminderID)
}

func (n *DedupNotifier) Notify(ctx context.Context, notice model.Notice) error {
	key := dedupKey(notice)

	ok, err := n.rdb.SetNX(ctx, key, 1, n.ttl).Result()
	if err != nil {
		n.logger.Warn("Redis dedup check failed, allowing notify",
			zap.String("reminder_id", notice.ReminderID.String()),
			zap.Error(err),
		)
		return n.next.Notify(ctx, notice)
	}
	if !ok {
		n.logger.Info("Skipped duplicated reminder",
			zap.String("reminder_id", notice.ReminderID.String()),
			zap.String("dedup_key", key),
		)
		return nil
	}

	if err := n.next.Notify(ctx, notice); err != nil {
		// Release the claim so the retry on the next tick is not swallowed.
		if delErr := n.rdb.Del(ctx, key).Err(); delErr != nil {
			n.logger.Warn("Failed to release dedup key",
				zap.String("dedup_key", key),
				zap.Error(delErr),
			)
		}
		return err
	}
	return nil
}
