package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"docnest/internal/model"
	"docnest/pkg/filestore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentStore is the catalog the service reads and writes.
type DocumentStore interface {
	Create(ctx context.Context, d *model.Document) error
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, d *model.Document) error
	List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error)
}

// FileStore keeps the binary content of documents.
type FileStore interface {
	Save(ctx context.Context, userID, documentID uuid.UUID, content io.Reader, originalFileName, contentType string) (*filestore.StoredFileInfo, error)
	Open(ctx context.Context, userID, documentID uuid.UUID) (*filestore.StoredFile, error)
}

type CreateDocumentInput struct {
	SubjectID uuid.UUID
	Title     string
	Type      string
	ExpiresOn *time.Time
}

type UpdateDocumentInput struct {
	Title     string
	Type      string
	ExpiresOn *time.Time
}

// DocumentService holds the catalog rules shared by the API and the CLI.
type DocumentService struct {
	docs           DocumentStore
	files          FileStore
	defaultSubject uuid.UUID
	logger         *zap.Logger
	now            func() time.Time
}

func NewDocumentService(docs DocumentStore, files FileStore, defaultSubject uuid.UUID, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		docs:           docs,
		files:          files,
		defaultSubject: defaultSubject,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for timestamps and the past-expiry check.
func (s *DocumentService) WithClock(now func() time.Time) *DocumentService {
	s.now = now
	return s
}

func (s *DocumentService) Create(ctx context.Context, userID uuid.UUID, in CreateDocumentInput) (*model.Document, error) {
	subjectID := in.SubjectID
	if subjectID == uuid.Nil {
		subjectID = s.defaultSubject
	}

	doc, err := model.NewDocument(userID, subjectID, in.Title, in.Type, in.ExpiresOn, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("has_expiry", doc.ExpiresOn != nil),
	)
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error) {
	return s.docs.Get(ctx, userID, id)
}

// List applies the paging defaults, validates f and returns one page.
func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = model.DefaultPageSize
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.docs.List(ctx, userID, f)
}

// Update replaces title, type and expiry. Reminders already materialized for
// the old expiry are not touched.
func (s *DocumentService) Update(ctx context.Context, userID, id uuid.UUID, in UpdateDocumentInput) (*model.Document, error) {
	doc, err := s.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := doc.UpdateMetadata(in.Title, in.Type, in.ExpiresOn, s.now()); err != nil {
		return nil, err
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

// AttachFile stores content as the document's file and records its metadata.
func (s *DocumentService) AttachFile(ctx context.Context, userID, id uuid.UUID, content io.Reader, fileName, contentType string) (*model.Document, error) {
	doc, err := s.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	info, err := s.files.Save(ctx, userID, id, content, fileName, contentType)
	if err != nil {
		if errors.Is(err, filestore.ErrInvalidArgument) {
			return nil, model.ValidationErrors{{Field: "file", Message: err.Error()}}
		}
		return nil, fmt.Errorf("save file: %w", err)
	}

	doc.AttachFile(model.FileMetadata{
		FileKey:          info.FileKey,
		OriginalFileName: info.OriginalFileName,
		ContentType:      info.ContentType,
		SizeBytes:        info.SizeBytes,
	}, s.now())
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("record file metadata: %w", err)
	}

	s.logger.Info("File attached",
		zap.String("document_id", id.String()),
		zap.String("file_key", info.FileKey),
		zap.Int64("size_bytes", info.SizeBytes),
	)
	return doc, nil
}

// OpenFile returns the document's file with the name and content type recorded
// at upload. The caller closes Content.
func (s *DocumentService) OpenFile(ctx context.Context, userID, id uuid.UUID) (*filestore.StoredFile, error) {
	doc, err := s.docs.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !doc.HasFile() {
		return nil, filestore.ErrFileNotFound
	}

	f, err := s.files.Open(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	f.OriginalFileName = doc.File.OriginalFileName
	if doc.File.ContentType != "" {
		f.ContentType = doc.File.ContentType
	}
	return f, nil
}
