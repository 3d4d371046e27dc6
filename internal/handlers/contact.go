package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/portfolio-inbox/internal/contact"
	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
)

// RegisterContactRoutes registers the public contact form endpoint.
//
// POST /contact
// - No auth; rate limited per X-Forwarded-For value
// - 200 accepted (emailSent tells whether mail went out) or silently discarded
// - 400 validation, 429 with Retry-After, 500 send failure
func RegisterContactRoutes(r gin.IRoutes, gate *contact.Gate) {
	r.POST("/contact", func(c *gin.Context) {
		var req models.ContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		sub := contact.Submission{
			Text:           stringField(req.Text),
			SenderIdentity: stringField(req.FromEmail),
			OriginKey:      ratelimit.OriginKey(c.Request),
		}
		if truthy(req.BotField) {
			sub.Honeypot = fmt.Sprint(req.BotField)
		}

		out := gate.Evaluate(c.Request.Context(), sub)
		switch out.Kind {
		case contact.Accepted:
			sent := out.EmailSent
			c.JSON(http.StatusOK, models.ContactResponse{Success: true, EmailSent: &sent})
		case contact.SilentlyDiscarded:
			c.JSON(http.StatusOK, models.ContactResponse{Success: true})
		case contact.Rejected:
			c.JSON(http.StatusBadRequest, gin.H{"error": out.Reason})
		case contact.RateLimited:
			if out.RetryAfterSeconds > 0 {
				c.Header("Retry-After", strconv.Itoa(out.RetryAfterSeconds))
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": out.Reason})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": contact.ReasonSendFailed})
		}
	})
}

// stringField returns v when it is a JSON string and "" otherwise.
func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}
