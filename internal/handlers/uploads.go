package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/storage"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// Uploader is the object store used for attachments.
type Uploader interface {
	Upload(ctx context.Context, path, contentType string, body []byte) error
	PublicURL(path string) string
}

// RegisterUploadRoutes registers attachment upload.
//
// POST /uploads (multipart: threadId, file)
// - Thread must exist
// - Files above maxBytes → 413
// - Returns the public URL and "image" or "file" for the message payload
func RegisterUploadRoutes(r gin.IRoutes, st store.Store, objects Uploader, maxBytes int64, log *zap.Logger) {
	r.POST("/uploads", func(c *gin.Context) {
		threadID := strings.TrimSpace(c.PostForm("threadId"))
		fh, err := c.FormFile("file")
		if threadID == "" || err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threadId and file are required"})
			return
		}
		if fh.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", maxBytes)})
			return
		}

		ctx := c.Request.Context()
		if _, err := st.GetThread(ctx, threadID); err != nil {
			storeFailure(c, log, err, "conversation not found", "failed to look up conversation")
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		if int64(len(data)) > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", maxBytes)})
			return
		}

		contentType := storage.DetectContentType(data, fh.Header.Get("Content-Type"))
		path := storage.AttachmentPath(threadID, fh.Filename, time.Now())

		if err := objects.Upload(ctx, path, contentType, data); err != nil {
			if errors.Is(err, storage.ErrNotConfigured) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage is not configured"})
				return
			}
			log.Error("attachment upload", zap.Error(err), zap.String("path", path))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload file"})
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			URL:  objects.PublicURL(path),
			Type: storage.AttachmentKind(contentType),
		})
	})
}
