package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTitleLength = 200
	MaxTypeLength  = 50
)

type Document struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	SubjectID uuid.UUID     `json:"subject_id"`
	Title     string        `json:"title"`
	Type      string        `json:"type"`
	ExpiresOn *time.Time    `json:"expires_on,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	File      *FileMetadata `json:"file,omitempty"`
}

type FileMetadata struct {
	FileKey          string `json:"file_key"`
	OriginalFileName string `json:"original_file_name"`
	ContentType      string `json:"content_type"`
	SizeBytes        int64  `json:"size_bytes"`
}

// DocumentExpiry is the projection the reminder engine reads from the catalog.
type DocumentExpiry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresOn time.Time
}

// NewDocument validates input and builds a document with a fresh id.
func NewDocument(userID, subjectID uuid.UUID, title, docType string, expiresOn *time.Time, now time.Time) (*Document, error) {
	var errs ValidationErrors
	if userID == uuid.Nil {
		errs.add("userId", "is required")
	}
	if subjectID == uuid.Nil {
		errs.add("subjectId", "is required")
	}
	title, docType, expiresOn = validateMetadata(&errs, title, docType, expiresOn, now)
	if err := errs.err(); err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Document{
		ID:        uuid.New(),
		UserID:    userID,
		SubjectID: subjectID,
		Title:     title,
		Type:      docType,
		ExpiresOn: expiresOn,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateMetadata applies the same rules as NewDocument. Reminders already
// materialized for the old expiry are left as they are.
func (d *Document) UpdateMetadata(title, docType string, expiresOn *time.Time, now time.Time) error {
	var errs ValidationErrors
	title, docType, expiresOn = validateMetadata(&errs, title, docType, expiresOn, now)
	if err := errs.err(); err != nil {
		return err
	}
	d.Title = title
	d.Type = docType
	d.ExpiresOn = expiresOn
	d.UpdatedAt = now.UTC()
	return nil
}

func (d *Document) AttachFile(meta FileMetadata, now time.Time) {
	d.File = &meta
	d.UpdatedAt = now.UTC()
}

func (d *Document) HasFile() bool {
	return d.File != nil && d.File.FileKey != ""
}

func validateMetadata(errs *ValidationErrors, title, docType string, expiresOn *time.Time, now time.Time) (string, string, *time.Time) {
	title = strings.TrimSpace(title)
	docType = strings.TrimSpace(docType)

	switch {
	case title == "":
		errs.add("title", "is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs.add("title", "must be at most 200 characters")
	}
	switch {
	case docType == "":
		errs.add("type", "is required")
	case utf8.RuneCountInString(docType) > MaxTypeLength:
		errs.add("type", "must be at most 50 characters")
	}

	if expiresOn != nil {
		date := DateOf(*expiresOn)
		if date.Before(DateOf(now)) {
			errs.add("expiresOn", "cannot be in the past")
		}
		expiresOn = &date
	}
	return title, docType, expiresOn
}
