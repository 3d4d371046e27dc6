package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/notify"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
	"github.com/PratikDhanave/portfolio-inbox/internal/storage"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"0", true},
		{float64(0), false},
		{math.NaN(), false},
		{float64(2), true},
		{[]any{}, true},
		{map[string]any{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.in), "truthy(%#v)", tt.in)
	}
}

func TestStringField(t *testing.T) {
	assert.Equal(t, "hi", stringField("hi"))
	assert.Empty(t, stringField(float64(1)))
	assert.Empty(t, stringField(nil))
	assert.Empty(t, stringField([]any{"hi"}))
}

////////////////////////////////////////////////////////////////////////////////
// EMAIL
////////////////////////////////////////////////////////////////////////////////

type stubMailer struct {
	err  error
	sent []notify.Email
}

func (s *stubMailer) Recipient() string  { return "owner@example.com" }
func (s *stubMailer) CheckConfig() error { return nil }
func (s *stubMailer) Send(_ context.Context, e notify.Email) (notify.Receipt, error) {
	if s.err != nil {
		return notify.Receipt{}, s.err
	}
	s.sent = append(s.sent, e)
	return notify.Receipt{ID: "em_1"}, nil
}

func postEmail(t *testing.T, m *stubMailer, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	RegisterEmailRoutes(r, m, zap.NewNop())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestEmail_ProviderErrors(t *testing.T) {
	body := `{"to":"x@y.z","subject":"s","text":"t","fromEmail":"me@y.z"}`

	w := postEmail(t, &stubMailer{err: fmt.Errorf("send: %w", notify.ErrNotConfigured)}, body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postEmail(t, &stubMailer{err: errors.New("resend: status 500")}, body)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"failed to send email"}`, w.Body.String())
}

func TestEmail_RequiresSender(t *testing.T) {
	m := &stubMailer{}
	w := postEmail(t, m, `{"to":"x@y.z","subject":"s","text":"t","fromEmail":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"fromEmail is required"}`, w.Body.String())
	assert.Empty(t, m.sent)
}

////////////////////////////////////////////////////////////////////////////////
// UPLOADS
////////////////////////////////////////////////////////////////////////////////

type stubUploader struct {
	err   error
	paths []string
}

func (s *stubUploader) Upload(_ context.Context, path, _ string, _ []byte) error {
	if s.err != nil {
		return s.err
	}
	s.paths = append(s.paths, path)
	return nil
}

func (s *stubUploader) PublicURL(path string) string { return "https://cdn.test/" + path }

func uploadFile(t *testing.T, up Uploader, filename string, content []byte) (*httptest.ResponseRecorder, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.EnsureSchema(ctx))
	th, err := st.CreateThread(ctx, store.ThreadInput{Title: "t", Preview: "p"})
	require.NoError(t, err)

	r := gin.New()
	RegisterUploadRoutes(r, st, up, 1024, zap.NewNop())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("threadId", th.ID))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = fw.Write(content)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	return w, th.ID
}

func TestUpload_PlainFile(t *testing.T) {
	up := &stubUploader{}
	w, threadID := uploadFile(t, up, "notes.txt", []byte("plain text notes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, up.paths, 1)
	assert.True(t, strings.HasPrefix(up.paths[0], threadID+"/"))
	assert.True(t, strings.HasSuffix(up.paths[0], ".txt"))
	assert.JSONEq(t, fmt.Sprintf(`{"url":"https://cdn.test/%s","type":"file"}`, up.paths[0]), w.Body.String())
}

func TestUpload_StorageErrors(t *testing.T) {
	w, _ := uploadFile(t, &stubUploader{err: storage.ErrNotConfigured}, "a.txt", []byte("x"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = uploadFile(t, &stubUploader{err: errors.New("storage: status 500")}, "a.txt", []byte("x"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

////////////////////////////////////////////////////////////////////////////////
// CONTACT STATS
////////////////////////////////////////////////////////////////////////////////

// brokenSince fails only the windowed query.
type brokenSince struct{ *ratelimit.MemoryStatsStore }

func (brokenSince) Since(context.Context, time.Time) (ratelimit.Counters, error) {
	return ratelimit.Counters{}, errors.New("redis: connection refused")
}

func getStats(t *testing.T, stats ratelimit.StatsStore) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	RegisterContactStatsRoutes(r, stats, zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contact/stats", nil))
	return w
}

func TestContactStats_ReportsLastHour(t *testing.T) {
	ctx := context.Background()
	s := ratelimit.NewMemoryStatsStore()
	require.NoError(t, s.Record(ctx, ratelimit.StatsEvent{Allowed: true, Outcome: "admitted", At: time.Now().Add(-3 * time.Hour)}))
	require.NoError(t, s.Record(ctx, ratelimit.StatsEvent{Allowed: false, Outcome: "rate_limited"}))

	w := getStats(t, s)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"allowed": 1,
		"denied": 1,
		"byOutcome": {"admitted": 1, "rate_limited": 1},
		"lastHour": {"allowed": 0, "denied": 1}
	}`, w.Body.String())
}

func TestContactStats_QueryFailure(t *testing.T) {
	w := getStats(t, brokenSince{ratelimit.NewMemoryStatsStore()})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"stats query failed"}`, w.Body.String())
}
