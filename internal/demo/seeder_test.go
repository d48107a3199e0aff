package demo

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"docnest/internal/model"
	"docnest/internal/repository"
	"docnest/pkg/filestore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var seedNow = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

func newTestSeeder(t *testing.T) (*Seeder, *repository.SQLiteStore, *filestore.LocalStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	files, err := filestore.NewLocalStore(dir)
	require.NoError(t, err)

	s := NewSeeder(store, files, uuid.New(), uuid.New(), zap.NewNop()).
		WithClock(func() time.Time { return seedNow })
	return s, store, files
}

func TestSeeder_SeedsEmptyCatalogOnce(t *testing.T) {
	ctx := context.Background()
	s, store, files := newTestSeeder(t)

	n, err := s.SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	n, err = s.SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := store.List(ctx, s.userID, model.DocumentFilter{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 15, page.Total)

	var undated, withFile int
	for _, d := range page.Items {
		if d.ExpiresOn == nil {
			undated++
		}
		if d.HasFile() {
			withFile++
			f, err := files.Open(ctx, s.userID, d.ID)
			require.NoError(t, err)
			body, err := io.ReadAll(f.Content)
			f.Content.Close()
			require.NoError(t, err)
			assert.Contains(t, string(body), "Demo file")
		}
		if d.Title == "Gym subscription contract" {
			assert.Equal(t, "2026-01-22", model.FormatDate(*d.ExpiresOn))
		}
	}
	assert.Equal(t, 5, undated)
	assert.Equal(t, 2, withFile)
}

func TestSeeder_Reset(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSeeder(t)

	_, err := s.SeedIfNeeded(ctx)
	require.NoError(t, err)
	extra := &model.Document{
		ID: uuid.New(), UserID: uuid.New(), SubjectID: uuid.New(),
		Title: "Other user's doc", Type: "Other", CreatedAt: seedNow, UpdatedAt: seedNow,
	}
	require.NoError(t, store.Create(ctx, extra))

	require.NoError(t, s.Reset(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
}

func TestSeeder_RequiresIDs(t *testing.T) {
	s, _, _ := newTestSeeder(t)
	s.userID = uuid.Nil

	_, err := s.SeedIfNeeded(context.Background())
	assert.Error(t, err)
}
