package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidArgument = errors.New("invalid file store argument")
)

const defaultContentType = "application/octet-stream"

type StoredFileInfo struct {
	FileKey          string
	OriginalFileName string
	ContentType      string
	SizeBytes        int64
}

// StoredFile is an open file; the caller closes Content.
type StoredFile struct {
	Content io.ReadCloser
	StoredFileInfo
}

// LocalStore keeps one current file per document under
// <root>/files/<user hex>/<document hex>/<document id><ext>.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: root path is required", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve file store root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string { return s.root }

// Save writes content as the document's current file, replacing any previous one.
func (s *LocalStore) Save(ctx context.Context, userID, documentID uuid.UUID, content io.Reader, originalFileName, contentType string) (*StoredFileInfo, error) {
	if err := checkIDs(userID, documentID); err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	safeName := sanitizeFileName(originalFileName)
	if safeName == "" {
		return nil, fmt.Errorf("%w: original file name is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	ext := filepath.Ext(safeName)
	if ext == "" {
		ext = ".bin"
	}
	fileKey := strings.ToLower(documentID.String() + ext)

	docDir := s.documentDir(userID, documentID)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}

	tmp, err := os.CreateTemp(docDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	size, err := io.Copy(tmp, readerWithContext{ctx: ctx, r: content})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	// Remove the previous file when the extension changes.
	if err := s.removeOthers(docDir, fileKey); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, filepath.Join(docDir, fileKey)); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	return &StoredFileInfo{
		FileKey:          fileKey,
		OriginalFileName: safeName,
		ContentType:      contentType,
		SizeBytes:        size,
	}, nil
}

// Open returns the document's current file or ErrFileNotFound.
func (s *LocalStore) Open(_ context.Context, userID, documentID uuid.UUID) (*StoredFile, error) {
	if err := checkIDs(userID, documentID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.documentDir(userID, documentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document dir: %w", err)
	}

	type candidate struct {
		entry os.DirEntry
		info  os.FileInfo
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{entry: e, info: info})
	}
	if len(files) == 0 {
		return nil, ErrFileNotFound
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].info.ModTime().After(files[j].info.ModTime())
	})
	latest := files[0]

	f, err := os.Open(filepath.Join(s.documentDir(userID, documentID), latest.entry.Name()))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &StoredFile{
		Content: f,
		StoredFileInfo: StoredFileInfo{
			FileKey:          latest.entry.Name(),
			OriginalFileName: latest.entry.Name(),
			ContentType:      GuessContentType(filepath.Ext(latest.entry.Name())),
			SizeBytes:        latest.info.Size(),
		},
	}, nil
}

// Delete removes the document's directory. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, userID, documentID uuid.UUID) error {
	if err := checkIDs(userID, documentID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.documentDir(userID, documentID)); err != nil {
		return fmt.Errorf("delete document files: %w", err)
	}
	return nil
}

// DeleteUser removes every file stored for userID.
func (s *LocalStore) DeleteUser(_ context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if err := os.RemoveAll(filepath.Join(s.root, "files", hexID(userID))); err != nil {
		return fmt.Errorf("delete user files: %w", err)
	}
	return nil
}

func (s *LocalStore) documentDir(userID, documentID uuid.UUID) string {
	return filepath.Join(s.root, "files", hexID(userID), hexID(documentID))
}

func (s *LocalStore) removeOthers(docDir, keep string) error {
	entries, err := os.ReadDir(docDir)
	if err != nil {
		return fmt.Errorf("read document dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.Remove(filepath.Join(docDir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove previous file: %w", err)
		}
	}
	return nil
}

func checkIDs(userID, documentID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if documentID == uuid.Nil {
		return fmt.Errorf("%w: document id is required", ErrInvalidArgument)
	}
	return nil
}

func hexID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// sanitizeFileName strips directories and replaces characters that are unsafe
// on common filesystems.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = name[strings.LastIndex(name, "/")+1:]
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// GuessContentType maps a file extension to a MIME type.
func GuessContentType(ext string) string {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	default:
		return defaultContentType
	}
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
