package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
)

// RegisterContactStatsRoutes registers the contact limiter counters.
//
// GET /contact/stats
// - Cumulative allowed/denied limiter decisions since the stats store started
// - byOutcome splits them by gate outcome label
// - lastHour sums the per-minute buckets of the past hour
func RegisterContactStatsRoutes(r gin.IRoutes, stats ratelimit.StatsStore, log *zap.Logger) {
	r.GET("/contact/stats", func(c *gin.Context) {
		ctx := c.Request.Context()

		total, err := stats.Total(ctx)
		if err != nil {
			log.Error("read contact stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}
		byOutcome, err := stats.Outcomes(ctx)
		if err != nil {
			log.Error("read contact stats outcomes", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}
		lastHour, err := stats.Since(ctx, time.Now().Add(-time.Hour))
		if err != nil {
			log.Error("read contact stats minutes", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"allowed":   total.Allowed,
			"denied":    total.Denied,
			"byOutcome": byOutcome,
			"lastHour":  lastHour,
		})
	})
}
