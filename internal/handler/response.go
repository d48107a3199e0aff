package handler

import (
	"errors"
	"net/http"
	"time"

	"docnest/internal/model"
	"docnest/pkg/filestore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDKey is the gin context key the auth middleware stores the caller under.
const UserIDKey = "user_id"

type fileResponse struct {
	OriginalFileName string `json:"originalFileName"`
	ContentType      string `json:"contentType"`
	SizeBytes        int64  `json:"sizeBytes"`
}

type documentResponse struct {
	ID        uuid.UUID     `json:"id"`
	SubjectID uuid.UUID     `json:"subjectId"`
	Title     string        `json:"title"`
	Type      string        `json:"type"`
	ExpiresOn *string       `json:"expiresOn"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	File      *fileResponse `json:"file"`
}

type pageResponse struct {
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Total    int                `json:"total"`
	Items    []documentResponse `json:"items"`
}

func toDocumentResponse(d *model.Document) documentResponse {
	resp := documentResponse{
		ID:        d.ID,
		SubjectID: d.SubjectID,
		Title:     d.Title,
		Type:      d.Type,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.ExpiresOn != nil {
		s := model.FormatDate(*d.ExpiresOn)
		resp.ExpiresOn = &s
	}
	if d.HasFile() {
		resp.File = &fileResponse{
			OriginalFileName: d.File.OriginalFileName,
			ContentType:      d.File.ContentType,
			SizeBytes:        d.File.SizeBytes,
		}
	}
	return resp
}

func toPageResponse(p *model.DocumentPage) pageResponse {
	items := make([]documentResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, toDocumentResponse(&p.Items[i]))
	}
	return pageResponse{Page: p.Page, PageSize: p.PageSize, Total: p.Total, Items: items}
}

// getUserID reads the caller set by the auth middleware.
func getUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Ids that cannot exist are reported like missing documents.
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var verrs model.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": verrs})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, filestore.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func fieldError(field, message string) error {
	return model.ValidationErrors{{Field: field, Message: message}}
}
