package reminder_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docnest/internal/model"
	"docnest/internal/reminder"
	"docnest/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	// now is mid-morning so that reminders due "today" are already due.
	now   = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	today = model.DateOf(now)
)

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedDocument stores a document expiring inDays days after today, or never when inDays is nil.
func seedDocument(t *testing.T, store *repository.SQLiteStore, inDays *int) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		SubjectID: uuid.New(),
		Title:     "Passport",
		Type:      "ID",
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	if inDays != nil {
		expires := model.AddDays(today, *inDays)
		doc.ExpiresOn = &expires
	}
	require.NoError(t, store.Create(context.Background(), doc))
	return doc
}

func days(n int) *int { return &n }

// seedDueReminder stores a pending reminder with the given due time.
func seedDueReminder(t *testing.T, store reminder.Store, dueAt time.Time) *model.Reminder {
	t.Helper()
	ctx := context.Background()
	r, err := model.NewReminder(uuid.New(), uuid.New(), model.AddDays(today, 1), 1, now.Add(-24*time.Hour))
	require.NoError(t, err)
	r.DueAt = dueAt

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, r))
	require.NoError(t, tx.Commit(ctx))
	return r
}

func listReminders(t *testing.T, store *repository.SQLiteStore, pendingOnly bool) []*model.Reminder {
	t.Helper()
	out, err := store.ListReminders(context.Background(), pendingOnly, 1000)
	require.NoError(t, err)
	return out
}

// recordingNotifier remembers every notice and fails for the configured reminders.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []model.Notice
	failFor map[uuid.UUID]error
}

func (n *recordingNotifier) Notify(_ context.Context, notice model.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[notice.ReminderID]; ok {
		return err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) count(id uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, notice := range n.notices {
		if notice.ReminderID == id {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

var errStoreDown = errors.New("store unreachable")

// faultyStore wraps a store and injects failures into selected operations.
type faultyStore struct {
	reminder.Store
	failBegin      bool
	failFindDue    bool
	failExpiringOn map[string]bool
	hideExisting   bool
	// dropUserIDs blanks the user id on every catalog row, which no reminder accepts.
	dropUserIDs    bool
}

func (s *faultyStore) Begin(ctx context.Context) (reminder.Tx, error) {
	if s.failBegin {
		return nil, errStoreDown
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: s}, nil
}

type faultyTx struct {
	reminder.Tx
	store *faultyStore
}

func (t *faultyTx) DocumentsExpiringOn(ctx context.Context, date time.Time) ([]model.DocumentExpiry, error) {
	if t.store.failExpiringOn[model.FormatDate(date)] {
		return nil, errStoreDown
	}
	docs, err := t.Tx.DocumentsExpiringOn(ctx, date)
	if t.store.dropUserIDs {
		for i := range docs {
			docs[i].UserID = uuid.Nil
		}
	}
	return docs, err
}

func (t *faultyTx) FindDue(ctx context.Context, at time.Time, limit int) ([]*model.Reminder, error) {
	if t.store.failFindDue {
		return nil, errStoreDown
	}
	return t.Tx.FindDue(ctx, at, limit)
}

// ExistingPairs can pretend nothing exists, as a concurrent writer that has
// not committed yet would look.
func (t *faultyTx) ExistingPairs(ctx context.Context, daysBefore int, ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if t.store.hideExisting {
		return map[uuid.UUID]struct{}{}, nil
	}
	return t.Tx.ExistingPairs(ctx, daysBefore, ids)
}
