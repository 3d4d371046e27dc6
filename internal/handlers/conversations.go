package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/inbox"
	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// loadConversations reads every thread with its messages, ordered by index.
func loadConversations(c *gin.Context, st store.Store) ([]models.Conversation, error) {
	ctx := c.Request.Context()

	threads, err := st.ListThreads(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	msgs, err := st.ListMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	return inbox.Assemble(threads, msgs), nil
}

// RegisterConversationRoutes registers the public reader endpoint.
//
// GET /conversations
// - No auth, read-only
// - Pinned first by title, then most recently active
// - Messages carry showTime for the reader's timestamp separators
func RegisterConversationRoutes(r gin.IRoutes, st store.Store, log *zap.Logger) {
	r.GET("/conversations", func(c *gin.Context) {
		convs, err := loadConversations(c, st)
		if err != nil {
			log.Error("fetch conversations", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
			return
		}

		c.JSON(http.StatusOK, inbox.PublicView(convs, time.Now()))
	})
}
