package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
)

// newRouter trusts no proxy unless trusted is given, like the service router.
func newRouter(creds Credentials, throttle *ratelimit.BucketStore, trusted ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if err := r.SetTrustedProxies(trusted); err != nil {
		panic(err)
	}
	r.Use(BasicAuthMiddleware(creds, throttle))
	r.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": AdminUser(c)})
	})
	return r
}

func do(r http.Handler, user, pass string, withAuth bool) *httptest.ResponseRecorder {
	return doFrom(r, "10.0.0.1:1234", "", user, pass, withAuth)
}

func doFrom(r http.Handler, remote, forwarded, user, pass string, withAuth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	if withAuth {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBasicAuth_NotConfigured(t *testing.T) {
	r := newRouter(Credentials{User: "admin"}, nil)

	rec := do(r, "admin", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, Challenge, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"admin authentication is not configured"}`, rec.Body.String())
}

func TestBasicAuth_MissingAndWrongCredentials(t *testing.T) {
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, nil)

	for name, rec := range map[string]*httptest.ResponseRecorder{
		"missing":    do(r, "", "", false),
		"wrong user": do(r, "root", "s3cret", true),
		"wrong pass": do(r, "admin", "nope", true),
		"prefix":     do(r, "admin", "s3cre", true),
	} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, Challenge, rec.Header().Get("WWW-Authenticate"), name)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String(), name)
	}
}

func TestBasicAuth_Success(t *testing.T) {
	r := newRouter(Credentials{User: "admin", Pass: "pa:ss"}, nil)

	rec := do(r, "admin", "pa:ss", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"admin"}`, rec.Body.String())
}

func TestBasicAuth_FailuresAreThrottled(t *testing.T) {
	throttle := ratelimit.NewBucketStore(0.001, 2)
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, throttle)

	assert.Equal(t, http.StatusUnauthorized, do(r, "admin", "x", true).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "admin", "y", true).Code)

	rec := do(r, "admin", "s3cret", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "exhausted bucket is refused before credentials are checked")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBasicAuth_SuccessDoesNotSpendTokens(t *testing.T) {
	throttle := ratelimit.NewBucketStore(0.001, 1)
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, throttle)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, "admin", "s3cret", true).Code)
	}
}

func TestBasicAuth_ForwardedForDoesNotResetThrottle(t *testing.T) {
	throttle := ratelimit.NewBucketStore(0.001, 2)
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, throttle)

	codes := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		rec := doFrom(r, "10.0.0.1:1234", fmt.Sprintf("203.0.113.%d", i), "admin", "guess", true)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized}, codes[:2])
	for i, code := range codes[2:] {
		assert.Equal(t, http.StatusTooManyRequests, code, "attempt %d", i+3)
	}
}

func TestBasicAuth_TrustedProxyForwardsClientIP(t *testing.T) {
	throttle := ratelimit.NewBucketStore(0.001, 1)
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, throttle, "10.0.0.0/8")

	assert.Equal(t, http.StatusUnauthorized, doFrom(r, "10.0.0.1:1234", "203.0.113.1", "admin", "x", true).Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(r, "10.0.0.2:1234", "203.0.113.1", "admin", "x", true).Code)
	assert.Equal(t, http.StatusUnauthorized, doFrom(r, "10.0.0.1:1234", "203.0.113.2", "admin", "x", true).Code,
		"a different client behind the proxy has its own budget")
}

func TestBasicAuth_ParallelFailuresStayWithinBurst(t *testing.T) {
	const burst = 3
	throttle := ratelimit.NewBucketStore(0.001, burst)
	r := newRouter(Credentials{User: "admin", Pass: "s3cret"}, throttle)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]int{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := do(r, "admin", "guess", true).Code
			mu.Lock()
			seen[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, seen[http.StatusUnauthorized], burst)
	assert.Equal(t, 50, seen[http.StatusUnauthorized]+seen[http.StatusTooManyRequests])
	assert.Equal(t, http.StatusTooManyRequests, do(r, "admin", "s3cret", true).Code)
}
