package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Smallest valid PNG header plus IHDR chunk start.
var pngHead = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestObjectStore_Upload(t *testing.T) {
	var gotPath, gotAuth, gotKey, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"Key":"chat-attachments/t1/x.png"}`))
	}))
	defer srv.Close()

	s := NewObjectStore(srv.URL+"/", "svc", "chat-attachments")
	require.True(t, s.Configured())

	err := s.Upload(context.Background(), "t1/x.png", "image/png", pngHead)
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/chat-attachments/t1/x.png", gotPath)
	assert.Equal(t, "Bearer svc", gotAuth)
	assert.Equal(t, "svc", gotKey)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, pngHead, gotBody)

	assert.Equal(t, srv.URL+"/storage/v1/object/public/chat-attachments/t1/x.png", s.PublicURL("t1/x.png"))
}

func TestObjectStore_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Duplicate"}`))
	}))
	defer srv.Close()

	err := NewObjectStore(srv.URL, "svc", "b").Upload(context.Background(), "p", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestObjectStore_NotConfigured(t *testing.T) {
	s := NewObjectStore("", "", "b")
	assert.False(t, s.Configured())
	assert.ErrorIs(t, s.Upload(context.Background(), "p", "text/plain", nil), ErrNotConfigured)
}

func TestAttachmentPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	re := regexp.MustCompile(`^thread-1/[0-9a-f-]{36}-1700000000123\.(\w+)$`)

	tests := []struct {
		filename string
		ext      string
	}{
		{"photo.JPG", "jpg"},
		{"archive.tar.gz", "gz"},
		{"README", "readme"},
		{"weird.p/n\\g", "png"},
		{"trailing.", "bin"},
	}
	for _, tt := range tests {
		p := AttachmentPath("thread-1", tt.filename, now)
		m := re.FindStringSubmatch(p)
		require.NotNil(t, m, "path %q", p)
		assert.Equal(t, tt.ext, m[1], tt.filename)
	}

	assert.NotEqual(t, AttachmentPath("t", "a.png", now), AttachmentPath("t", "a.png", now))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType(pngHead, "application/octet-stream"))
	assert.Equal(t, "application/pdf", DetectContentType([]byte("%PDF-1.7\n"), ""))
	assert.Equal(t, "text/markdown", DetectContentType([]byte("# hello"), "text/markdown"))
}

func TestAttachmentKind(t *testing.T) {
	assert.Equal(t, KindImage, AttachmentKind("image/png"))
	assert.Equal(t, KindImage, AttachmentKind(" IMAGE/webp"))
	assert.Equal(t, KindFile, AttachmentKind("application/pdf"))
	assert.Equal(t, KindFile, AttachmentKind(""))
}
