package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
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

var fixedNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*DocumentService, uuid.UUID) {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, "docnest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	files, err := filestore.NewLocalStore(dir)
	require.NoError(t, err)

	subject := uuid.New()
	svc := NewDocumentService(store, files, subject, zap.NewNop()).
		WithClock(func() time.Time { return fixedNow })
	return svc, subject
}

func mustDate(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestDocumentService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, subject := newTestService(t)
	userID := uuid.New()

	doc, err := svc.Create(ctx, userID, CreateDocumentInput{
		Title:     "  Passport ",
		Type:      "ID",
		ExpiresOn: mustDate(t, "2027-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Passport", doc.Title)
	assert.Equal(t, subject, doc.SubjectID)
	assert.Equal(t, fixedNow, doc.CreatedAt)

	got, err := svc.Get(ctx, userID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New(), doc.ID)
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)
}

func TestDocumentService_CreateValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name  string
		in    CreateDocumentInput
		field string
	}{
		{name: "missing title", in: CreateDocumentInput{Type: "ID"}, field: "title"},
		{name: "long title", in: CreateDocumentInput{Title: strings.Repeat("a", 201), Type: "ID"}, field: "title"},
		{name: "missing type", in: CreateDocumentInput{Title: "Visa"}, field: "type"},
		{name: "long type", in: CreateDocumentInput{Title: "Visa", Type: strings.Repeat("t", 51)}, field: "type"},
		{name: "past expiry", in: CreateDocumentInput{Title: "Visa", Type: "ID", ExpiresOn: mustDate(t, "2026-01-14")}, field: "expiresOn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), uuid.New(), tt.in)
			require.ErrorIs(t, err, model.ErrValidation)

			var verrs model.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	_, err := svc.Create(context.Background(), uuid.New(), CreateDocumentInput{Title: "Today", Type: "ID", ExpiresOn: mustDate(t, "2026-01-15")})
	assert.NoError(t, err)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	userID := uuid.New()

	for i, title := range []string{"Passport", "Car insurance", "Lease"} {
		now := fixedNow.Add(time.Duration(i) * time.Minute)
		svc.WithClock(func() time.Time { return now })
		_, err := svc.Create(ctx, userID, CreateDocumentInput{Title: title, Type: "Other"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, userID, model.DocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, model.DefaultPageSize, page.PageSize)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Lease", page.Items[0].Title)

	_, err = svc.List(ctx, userID, model.DocumentFilter{PageSize: 51})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.List(ctx, userID, model.DocumentFilter{Page: -1})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.List(ctx, userID, model.DocumentFilter{IncludeNoExpiry: true})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDocumentService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	userID := uuid.New()

	doc, err := svc.Create(ctx, userID, CreateDocumentInput{Title: "Lease", Type: "Contract"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, userID, doc.ID, UpdateDocumentInput{Title: "Lease 2026", Type: "Contract", ExpiresOn: mustDate(t, "2026-12-31")})
	require.NoError(t, err)
	assert.Equal(t, "Lease 2026", updated.Title)
	assert.Equal(t, "2026-12-31", model.FormatDate(*updated.ExpiresOn))

	_, err = svc.Update(ctx, uuid.New(), doc.ID, UpdateDocumentInput{Title: "x", Type: "y"})
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)

	_, err = svc.Update(ctx, userID, doc.ID, UpdateDocumentInput{Title: "", Type: "y"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDocumentService_Files(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	userID := uuid.New()

	doc, err := svc.Create(ctx, userID, CreateDocumentInput{Title: "Passport scan", Type: "ID"})
	require.NoError(t, err)

	_, err = svc.OpenFile(ctx, userID, doc.ID)
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)

	attached, err := svc.AttachFile(ctx, userID, doc.ID, strings.NewReader("scan bytes"), "My Passport.PDF", "application/pdf")
	require.NoError(t, err)
	require.True(t, attached.HasFile())
	assert.Equal(t, int64(len("scan bytes")), attached.File.SizeBytes)

	f, err := svc.OpenFile(ctx, userID, doc.ID)
	require.NoError(t, err)
	defer f.Content.Close()
	body, err := io.ReadAll(f.Content)
	require.NoError(t, err)
	assert.Equal(t, "scan bytes", string(body))
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, attached.File.OriginalFileName, f.OriginalFileName)

	_, err = svc.AttachFile(ctx, userID, doc.ID, strings.NewReader("x"), "", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.AttachFile(ctx, uuid.New(), doc.ID, strings.NewReader("x"), "a.txt", "")
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)
}
