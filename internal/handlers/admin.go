package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/auth"
	"github.com/PratikDhanave/portfolio-inbox/internal/inbox"
	"github.com/PratikDhanave/portfolio-inbox/internal/models"
	"github.com/PratikDhanave/portfolio-inbox/internal/storage"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// storeFailure maps store errors onto responses. Driver detail stays in the log.
func storeFailure(c *gin.Context, log *zap.Logger, err error, notFound, failed string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	log.Error(failed, zap.Error(err), zap.String("admin", auth.AdminUser(c)))
	c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
}

// RegisterAdminAuthRoutes lets the admin panel verify credentials.
//
// GET|POST /auth → {"ok": true}; the auth middleware does the real work.
func RegisterAdminAuthRoutes(r gin.IRoutes) {
	ok := func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
	r.GET("/auth", ok)
	r.POST("/auth", ok)
}

// RegisterAdminConversationRoutes registers thread CRUD for the admin panel.
//
// GET    /conversations  all threads by index with their messages
// POST   /conversations  create, optionally seeding a first message
// PATCH  /conversations  update title, preview, pinned, icon or index
// DELETE /conversations  delete a thread and its messages
func RegisterAdminConversationRoutes(r gin.IRoutes, st store.Store, log *zap.Logger) {
	r.GET("/conversations", func(c *gin.Context) {
		convs, err := loadConversations(c, st)
		if err != nil {
			log.Error("admin fetch conversations", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	})

	r.POST("/conversations", func(c *gin.Context) {
		var req models.CreateConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Preview) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and preview are required"})
			return
		}

		in := store.ThreadInput{Title: req.Title, Preview: req.Preview, Pinned: req.Pinned}
		if req.Icon != nil {
			in.Icon = strings.TrimSpace(*req.Icon)
		}
		if req.Index != nil {
			in.Index = *req.Index
		}

		ctx := c.Request.Context()
		t, err := st.CreateThread(ctx, in)
		if err != nil {
			storeFailure(c, log, err, "conversation not found", "failed to create thread")
			return
		}

		conv := inbox.ToConversation(t)
		if seed := strings.TrimSpace(req.Seed); seed != "" {
			m, err := st.InsertMessage(ctx, store.MessageInput{ThreadID: t.ID, Text: seed})
			if err != nil {
				storeFailure(c, log, err, "conversation not found", "failed to seed message")
				return
			}
			conv.Messages = []models.Message{inbox.ToMessage(m)}
		}

		log.Info("thread created", zap.String("thread_id", t.ID), zap.String("admin", auth.AdminUser(c)))
		c.JSON(http.StatusOK, gin.H{"conversation": conv})
	})

	r.PATCH("/conversations", func(c *gin.Context) {
		var req models.PatchConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if req.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		var patch store.ThreadPatch
		if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
			patch.Title = req.Title
		}
		if req.Preview != nil && strings.TrimSpace(*req.Preview) != "" {
			patch.Preview = req.Preview
		}
		patch.Pinned = req.Pinned
		if req.Icon != nil {
			icon := strings.TrimSpace(*req.Icon)
			patch.Icon = &icon
		}
		patch.Index = req.Index
		if patch.Empty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "preview, title, pinned, icon, or index is required"})
			return
		}

		t, err := st.UpdateThread(c.Request.Context(), req.ID, patch)
		if err != nil {
			storeFailure(c, log, err, "conversation not found", "failed to update conversation")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": inbox.ToConversation(t)})
	})

	r.DELETE("/conversations", func(c *gin.Context) {
		var req models.DeleteConversationRequest
		// An unreadable body is the same as a missing id.
		_ = c.ShouldBindJSON(&req)
		if req.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		if err := st.DeleteThread(c.Request.Context(), req.ID); err != nil {
			storeFailure(c, log, err, "conversation not found", "failed to delete conversation")
			return
		}
		log.Info("thread deleted", zap.String("thread_id", req.ID), zap.String("admin", auth.AdminUser(c)))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// RegisterAdminMessageRoutes registers message CRUD for the admin panel.
//
// POST   /messages                                  append text and/or attachment
// PATCH  /messages/:id                              replace text
// DELETE /messages/:id                              delete by id
// DELETE /threads/:threadId/messages/:messageId     delete only within the thread
func RegisterAdminMessageRoutes(r gin.IRoutes, st store.Store, log *zap.Logger) {
	r.POST("/messages", func(c *gin.Context) {
		var req models.CreateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if req.ThreadID == "" || (req.Text == "" && req.AttachmentURL == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threadId and either text or attachment are required"})
			return
		}

		in := store.MessageInput{ThreadID: req.ThreadID, Text: req.Text, AttachmentURL: req.AttachmentURL}
		if req.AttachmentURL != "" {
			switch req.AttachmentType {
			case storage.KindImage, storage.KindFile:
				in.AttachmentType = req.AttachmentType
			default:
				in.AttachmentType = storage.KindFile
			}
		}

		m, err := st.InsertMessage(c.Request.Context(), in)
		if err != nil {
			storeFailure(c, log, err, "conversation not found", "failed to append message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": inbox.ToMessage(m)})
	})

	r.PATCH("/messages/:id", func(c *gin.Context) {
		var req models.PatchMessageRequest
		_ = c.ShouldBindJSON(&req)
		id := c.Param("id")
		if id == "" || strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id and text are required"})
			return
		}

		m, err := st.UpdateMessageText(c.Request.Context(), id, req.Text)
		if err != nil {
			storeFailure(c, log, err, "message not found", "failed to update message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": inbox.ToMessage(m)})
	})

	r.DELETE("/messages/:id", func(c *gin.Context) {
		if err := st.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
			storeFailure(c, log, err, "message not found", "failed to delete message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	r.DELETE("/threads/:threadId/messages/:messageId", func(c *gin.Context) {
		err := st.DeleteThreadMessage(c.Request.Context(), c.Param("threadId"), c.Param("messageId"))
		if err != nil {
			storeFailure(c, log, err, "message not found", "failed to delete message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
