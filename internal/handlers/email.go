package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/auth"
	"github.com/PratikDhanave/portfolio-inbox/internal/contact"
	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/notify"
)

// RegisterEmailRoutes registers the admin's direct send.
//
// POST /email {to, subject, text, fromEmail}
// - Body is prefixed with "From: <fromEmail>" and replies go to fromEmail
// - Not rate limited; the route sits behind admin auth
func RegisterEmailRoutes(r gin.IRoutes, mailer contact.Notifier, log *zap.Logger) {
	r.POST("/email", func(c *gin.Context) {
		var req models.SendEmailRequest
		_ = c.ShouldBindJSON(&req)
		if req.To == "" || req.Subject == "" || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to, subject, and text are required"})
			return
		}
		sender := strings.TrimSpace(req.FromEmail)
		if sender == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": contact.ReasonSenderRequired})
			return
		}

		rcpt, err := mailer.Send(c.Request.Context(), notify.Email{
			To:      req.To,
			Subject: req.Subject,
			Body:    "From: " + sender + "\n\n" + req.Text,
			ReplyTo: sender,
		})
		if err != nil {
			if errors.Is(err, notify.ErrNotConfigured) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email provider is not configured"})
				return
			}
			log.Error("admin email send", zap.Error(err), zap.String("admin", auth.AdminUser(c)))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send email"})
			return
		}

		c.JSON(http.StatusOK, models.SendEmailResponse{Success: true, ID: rcpt.ID})
	})
}
