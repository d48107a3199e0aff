package repository

import (
	"context"
	"fmt"

	"docnest/internal/model"
	"docnest/internal/reminder"
	"docnest/pkg/config"
	"docnest/pkg/db"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Documents is the catalog surface both stores provide.
type Documents interface {
	Create(ctx context.Context, d *model.Document) error
	CreateMany(ctx context.Context, docs []*model.Document) error
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, d *model.Document) error
	List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// ReminderLister reads the ledger for operators.
type ReminderLister interface {
	ListReminders(ctx context.Context, pendingOnly bool, limit int) ([]*model.Reminder, error)
}

// Stores bundles the repositories for the configured driver.
type Stores struct {
	Driver    string
	Documents Documents
	Reminders reminder.Store
	Ledger    ReminderLister

	ping  func(ctx context.Context) error
	close func()
}

func (s *Stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the store selected by storage.driver and makes sure the schema exists.
func Open(ctx context.Context, storage config.StorageConfig, dbCfg config.DBConfig, logger *zap.Logger) (*Stores, error) {
	switch storage.Driver {
	case config.DriverPostgres, "":
		pool, err := db.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		reminders := NewReminderRepository(pool, logger)
		return &Stores{
			Driver:    config.DriverPostgres,
			Documents: NewDocumentRepository(pool, logger),
			Reminders: reminders,
			Ledger:    reminders,
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil

	case config.DriverSQLite:
		store, err := OpenSQLite(ctx, storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite store", zap.String("path", storage.SQLitePath))
		return NewSQLiteStores(store), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", storage.Driver)
	}
}

// NewSQLiteStores wraps an open SQLite store.
func NewSQLiteStores(store *SQLiteStore) *Stores {
	return &Stores{
		Driver:    config.DriverSQLite,
		Documents: store,
		Reminders: store,
		Ledger:    store,
		ping:      store.Ping,
		close:     func() { _ = store.Close() },
	}
}
