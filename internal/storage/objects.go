// Package storage uploads message attachments to a Supabase-style object
// store and names them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("object storage not configured")

const (
	KindImage = "image"
	KindFile  = "file"
)

// ObjectStore talks to the storage REST API under {baseURL}/storage/v1.
type ObjectStore struct {
	client     *resty.Client
	baseURL    string
	serviceKey string
	bucket     string
}

func NewObjectStore(baseURL, serviceKey, bucket string) *ObjectStore {
	return &ObjectStore{
		client:     resty.New().SetTimeout(30 * time.Second),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		bucket:     bucket,
	}
}

func (s *ObjectStore) Configured() bool {
	return s != nil && s.baseURL != "" && s.serviceKey != "" && s.bucket != ""
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Upload stores body at path. Existing objects are not overwritten.
func (s *ObjectStore) Upload(ctx context.Context, path, contentType string, body []byte) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.serviceKey).
		SetHeader("apikey", s.serviceKey).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(body).
		Post(fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(path)))
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload %s: status %d: %s", path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// PublicURL is where a public bucket serves path.
func (s *ObjectStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(path))
}

// AttachmentPath names a new object under the thread's folder:
// <threadID>/<uuid>-<unix ms>.<ext>. The extension is whatever follows the
// last dot of filename, reduced to letters and digits.
func AttachmentPath(threadID, filename string, now time.Time) string {
	ext := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i+1:]
	}
	ext = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return -1
	}, ext)
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s-%d.%s", threadID, uuid.NewString(), now.UnixMilli(), strings.ToLower(ext))
}

// DetectContentType sniffs the payload. The declared type wins only when
// sniffing finds nothing more specific than octet-stream or plain text.
func DetectContentType(head []byte, declared string) string {
	detected := mimetype.Detect(head)
	declared = strings.TrimSpace(declared)
	if declared != "" && (detected.Is("application/octet-stream") || detected.Is("text/plain")) {
		return declared
	}
	return detected.String()
}

// AttachmentKind maps a MIME type onto the message attachment_type.
func AttachmentKind(contentType string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return KindImage
	}
	return KindFile
}
