// Package bootstrap builds the reminder engine and its notifier chain from
// configuration. The worker, the API server and docnestctl share it.
package bootstrap

import (
	"context"
	"fmt"
	"slices"

	"docnest/internal/config"
	"docnest/internal/demo"
	"docnest/internal/notify"
	"docnest/internal/reminder"
	"docnest/internal/repository"
	"docnest/pkg/filestore"
	"docnest/pkg/mq"
	redisclient "docnest/pkg/redis"

	"go.uber.org/zap"
)

// Notifier is a configured notifier plus the connections it holds open.
type Notifier struct {
	reminder.Notifier
	closers []func()
}

// Close releases the MQ and Redis connections, if any were opened.
func (n *Notifier) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

// OpenNotifier connects to RabbitMQ when the mq channel is configured and to
// Redis when dedup is on, then composes the chain with notify.Build.
func OpenNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Notifier, error) {
	out := &Notifier{}
	var deps notify.Deps

	if slices.Contains(cfg.Notifier.Channels, config.ChannelMQ) {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return nil, fmt.Errorf("init MQ publisher: %w", err)
		}
		out.closers = append(out.closers, publisher.Close)
		deps.Publisher = publisher
		logger.Info("MQ publisher connected", zap.String("exchange", mq.ExchangeName))
	}

	if cfg.Notifier.Dedup {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		out.closers = append(out.closers, func() { _ = rdb.Close() })
		deps.Redis = rdb
		logger.Info("Redis dedup guard enabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("ttl", cfg.Notifier.DedupTTL()),
		)
	}

	n, err := notify.Build(cfg.Notifier, deps, logger)
	if err != nil {
		out.Close()
		return nil, err
	}
	out.Notifier = n
	return out, nil
}

// NewEngine wires the dispatcher and the materializer over store.
func NewEngine(cfg config.RemindersConfig, store reminder.Store, notifier reminder.Notifier, logger *zap.Logger) *reminder.Engine {
	dispatcher := reminder.NewDispatcher(store, notifier, logger).WithBatchSize(cfg.BatchSize)
	materializer := reminder.NewMaterializer(store, reminder.NewPolicy(cfg.DaysBefore), logger)
	return reminder.NewEngine(dispatcher, materializer)
}

// NewScheduler drives engine with the configured interval, tick timeout and
// run-on-start flag.
func NewScheduler(cfg config.RemindersConfig, engine reminder.Runner, logger *zap.Logger) *reminder.Scheduler {
	return reminder.NewScheduler(engine, logger, cfg.ScanInterval()).
		WithTickTimeout(cfg.TickTimeout()).
		WithRunOnStart(cfg.RunOnStart)
}

// NewSeeder returns the demo seeder for the configured demo user.
func NewSeeder(cfg *config.Config, stores *repository.Stores, files *filestore.LocalStore, logger *zap.Logger) *demo.Seeder {
	return demo.NewSeeder(stores.Documents, files, cfg.DemoUserID(), cfg.DemoSubjectID(), logger)
}
