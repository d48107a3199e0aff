package demo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"docnest/internal/model"
	"docnest/pkg/filestore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the part of the document store the seeder uses.
type Catalog interface {
	Count(ctx context.Context) (int, error)
	CreateMany(ctx context.Context, docs []*model.Document) error
	DeleteAll(ctx context.Context) error
}

type Files interface {
	Save(ctx context.Context, userID, documentID uuid.UUID, content io.Reader, originalFileName, contentType string) (*filestore.StoredFileInfo, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type seedDocument struct {
	title   string
	docType string
	// expiresIn is days after today; nil means no expiry.
	expiresIn *int
	file      *seedFile
}

type seedFile struct {
	name string
	text string
}

func in(days int) *int { return &days }

var seedDocuments = []seedDocument{
	{title: "Car insurance policy", docType: "Insurance", expiresIn: in(14), file: &seedFile{
		name: "insurance-policy.txt",
		text: "Demo file - Insurance policy placeholder.\nExpires soon.\n",
	}},
	{title: "ID card renewal", docType: "Identity", expiresIn: in(30)},
	{title: "Gym subscription contract", docType: "Contract", expiresIn: in(7)},
	{title: "Birth certificate", docType: "CivilStatus"},
	{title: "Diploma - Bachelor", docType: "Education"},
	{title: "Passport", docType: "Identity", expiresIn: in(365 * 4), file: &seedFile{
		name: "passport-scan.txt",
		text: "Demo file - Passport scan placeholder.\nUploaded via demo seed.\n",
	}},
	{title: "Home lease", docType: "Contract", expiresIn: in(365)},
	{title: "Electricity provider contract", docType: "Utility", expiresIn: in(90)},
	{title: "Mutualité affiliation", docType: "Health"},
	{title: "Car registration", docType: "Vehicle", expiresIn: in(365 * 2)},
	{title: "Internet subscription", docType: "Utility", expiresIn: in(60)},
	{title: "Work contract", docType: "Contract"},
	{title: "Tax return 2025", docType: "Tax", expiresIn: in(120)},
	{title: "Bank account agreement", docType: "Bank"},
	{title: "Warranty - Laptop", docType: "Warranty", expiresIn: in(365)},
}

// Seeder fills an empty catalog with demo documents for one user.
type Seeder struct {
	catalog   Catalog
	files     Files
	userID    uuid.UUID
	subjectID uuid.UUID
	logger    *zap.Logger
	now       func() time.Time
}

func NewSeeder(catalog Catalog, files Files, userID, subjectID uuid.UUID, logger *zap.Logger) *Seeder {
	return &Seeder{
		catalog:   catalog,
		files:     files,
		userID:    userID,
		subjectID: subjectID,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// SeedIfNeeded inserts the demo documents when the catalog is empty and
// returns how many it inserted.
func (s *Seeder) SeedIfNeeded(ctx context.Context) (int, error) {
	if s.userID == uuid.Nil || s.subjectID == uuid.Nil {
		return 0, fmt.Errorf("demo user id and subject id must be configured")
	}

	n, err := s.catalog.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	if n > 0 {
		s.logger.Info("Demo seeding skipped: documents already exist", zap.Int("documents", n))
		return 0, nil
	}

	now := s.now()
	today := model.DateOf(now)
	docs := make([]*model.Document, 0, len(seedDocuments))
	for _, sd := range seedDocuments {
		var expiresOn *time.Time
		if sd.expiresIn != nil {
			d := model.AddDays(today, *sd.expiresIn)
			expiresOn = &d
		}
		doc, err := model.NewDocument(s.userID, s.subjectID, sd.title, sd.docType, expiresOn, now)
		if err != nil {
			return 0, fmt.Errorf("build demo document %q: %w", sd.title, err)
		}

		if sd.file != nil {
			info, err := s.files.Save(ctx, s.userID, doc.ID, strings.NewReader(sd.file.text), sd.file.name, "text/plain")
			if err != nil {
				return 0, fmt.Errorf("save demo file %q: %w", sd.file.name, err)
			}
			doc.AttachFile(model.FileMetadata{
				FileKey:          info.FileKey,
				OriginalFileName: info.OriginalFileName,
				ContentType:      info.ContentType,
				SizeBytes:        info.SizeBytes,
			}, now)
		}
		docs = append(docs, doc)
	}

	if err := s.catalog.CreateMany(ctx, docs); err != nil {
		return 0, fmt.Errorf("insert demo documents: %w", err)
	}

	s.logger.Info("Demo seeding complete", zap.Int("documents", len(docs)), zap.Int("files", 2))
	return len(docs), nil
}

// Reset deletes every reminder and document plus the demo user's files, then seeds again.
func (s *Seeder) Reset(ctx context.Context) error {
	if err := s.catalog.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if s.userID != uuid.Nil {
		if err := s.files.DeleteUser(ctx, s.userID); err != nil {
			return err
		}
	}
	_, err := s.SeedIfNeeded(ctx)
	return err
}
