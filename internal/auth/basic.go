package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
)

// adminCtxKey is the Gin context key used to store the authenticated admin user.
const adminCtxKey = "admin_user"

// Challenge is sent with every 401 and 503 so browsers prompt for credentials.
const Challenge = `Basic realm="admin", charset="UTF-8"`

type Credentials struct {
	User string
	Pass string
}

func (c Credentials) configured() bool {
	return c.User != "" && c.Pass != ""
}

// BasicAuthMiddleware guards the admin surface with a single user/password pair.
//
// - No credentials configured → 503, nothing is ever accepted.
// - Client IP with no unclaimed token → 429 before credentials are looked at.
//   Attempts in flight hold a token, so a parallel burst cannot overshoot.
// - Missing or wrong credentials → 401 and one token spent.
func BasicAuthMiddleware(creds Credentials, throttle *ratelimit.BucketStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !creds.configured() {
			c.Header("WWW-Authenticate", Challenge)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin authentication is not configured"})
			return
		}

		// ClientIP honours X-Forwarded-For only from the router's trusted proxies.
		ip := c.ClientIP()
		release := func(bool) {}
		if throttle != nil {
			r, ok := throttle.Acquire(ip)
			if !ok {
				if retry := throttle.RetryAfter(ip); retry > 0 {
					c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
				}
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts"})
				return
			}
			release = r
		}

		user, pass, ok := c.Request.BasicAuth()
		userOK := equal(user, creds.User)
		passOK := equal(pass, creds.Pass)
		if !ok || !userOK || !passOK {
			release(true)
			c.Header("WWW-Authenticate", Challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		release(false)

		c.Set(adminCtxKey, user)
		c.Next()
	}
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// AdminUser returns the authenticated admin user from the request context.
func AdminUser(c *gin.Context) string {
	v, _ := c.Get(adminCtxKey)
	s, _ := v.(string)
	return s
}
