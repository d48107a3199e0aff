package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"docnest/internal/model"
	"docnest/internal/service"
	"docnest/pkg/filestore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUploadBytes caps PUT /documents/:id/file bodies.
const MaxUploadBytes = 20 << 20

// DocumentService is what the handlers need from service.DocumentService.
type DocumentService interface {
	Create(ctx context.Context, userID uuid.UUID, in service.CreateDocumentInput) (*model.Document, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, userID uuid.UUID, f model.DocumentFilter) (*model.DocumentPage, error)
	Update(ctx context.Context, userID, id uuid.UUID, in service.UpdateDocumentInput) (*model.Document, error)
	AttachFile(ctx context.Context, userID, id uuid.UUID, content io.Reader, fileName, contentType string) (*model.Document, error)
	OpenFile(ctx context.Context, userID, id uuid.UUID) (*filestore.StoredFile, error)
}

type DocumentHandler struct {
	svc    DocumentService
	logger *zap.Logger
}

func NewDocumentHandler(svc DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, logger: logger}
}

type documentRequest struct {
	SubjectID *string `json:"subjectId"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	ExpiresOn *string `json:"expiresOn"`
}

func (r documentRequest) expiresOn() (*time.Time, error) {
	if r.ExpiresOn == nil || *r.ExpiresOn == "" {
		return nil, nil
	}
	d, err := model.ParseDate(*r.ExpiresOn)
	if err != nil {
		return nil, fieldError("expiresOn", "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	expiresOn, err := req.expiresOn()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	in := service.CreateDocumentInput{Title: req.Title, Type: req.Type, ExpiresOn: expiresOn}
	if req.SubjectID != nil {
		if in.SubjectID, err = uuid.Parse(*req.SubjectID); err != nil {
			writeError(c, h.logger, fieldError("subjectId", "must be a UUID"))
			return
		}
	}

	doc, err := h.svc.Create(c.Request.Context(), userID, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Header("Location", "/documents/"+doc.ID.String())
	c.JSON(http.StatusCreated, gin.H{"id": doc.ID})
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// Update handles PUT /documents/:id.
func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	expiresOn, err := req.expiresOn()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	doc, err := h.svc.Update(c.Request.Context(), userID, id, service.UpdateDocumentInput{
		Title:     req.Title,
		Type:      req.Type,
		ExpiresOn: expiresOn,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	f, err := parseFilter(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), userID, f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func parseFilter(c *gin.Context) (model.DocumentFilter, error) {
	var (
		f    model.DocumentFilter
		errs model.ValidationErrors
	)

	intParam := func(name string) int {
		raw := c.Query(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: name, Message: "must be an integer"})
			return 0
		}
		if n == 0 {
			// 0 is out of range, not "use the default".
			return -1
		}
		return n
	}
	dateParam := func(name string) *time.Time {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		d, err := model.ParseDate(raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: name, Message: "must be a date in YYYY-MM-DD format"})
			return nil
		}
		return &d
	}

	f.Page = intParam("page")
	f.PageSize = intParam("pageSize")
	f.Query = c.Query("q")
	f.Type = c.Query("type")
	f.ExpiresBefore = dateParam("expiresBefore")
	f.ExpiresAfter = dateParam("expiresAfter")
	if raw := c.Query("includeNoExpiry"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "includeNoExpiry", Message: "must be true or false"})
		}
		f.IncludeNoExpiry = b
	}

	if len(errs) > 0 {
		return f, errs
	}
	return f, nil
}

// UploadFile handles PUT /documents/:id/file with a multipart "file" field.
func (h *DocumentHandler) UploadFile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		writeError(c, h.logger, fieldError("file", "is required"))
		return
	}

	src, err := fh.Open()
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("open upload: %w", err))
		return
	}
	defer src.Close()

	doc, err := h.svc.AttachFile(c.Request.Context(), userID, id, src, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// DownloadFile handles GET /documents/:id/file.
func (h *DocumentHandler) DownloadFile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	f, err := h.svc.OpenFile(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer f.Content.Close()

	c.DataFromReader(http.StatusOK, f.SizeBytes, f.ContentType, f.Content, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", f.OriginalFileName),
	})
}
