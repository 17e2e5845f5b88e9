package handlers

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/apperr"
	"dm-service/internal/media"
	"dm-service/internal/messaging"
	"dm-service/internal/models"
)

// MediaStore saves uploaded attachments.
type MediaStore interface {
	SaveMultipart(ctx context.Context, fh *multipart.FileHeader) (media.Stored, error)
	Remove(ctx context.Context, ref string) error
}

// ChatHandler serves the direct messaging REST endpoints.
type ChatHandler struct {
	svc   messaging.Service
	media MediaStore
	log   *slog.Logger
}

// NewChatHandler builds a ChatHandler. A nil media store disables uploads.
func NewChatHandler(svc messaging.Service, store MediaStore, log *slog.Logger) *ChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatHandler{svc: svc, media: store, log: log}
}

// RegisterRoutes mounts every endpoint on an authenticated group.
func (h *ChatHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/presence/online", h.SetOnline)
	r.POST("/presence/offline", h.SetOffline)

	r.POST("/typing/:user_id", h.SignalTyping)
	r.GET("/typing/:user_id", h.IsTyping)

	r.GET("/blocks", h.ListBlocked)
	r.POST("/blocks/:user_id", h.Block)
	r.DELETE("/blocks/:user_id", h.Unblock)
	r.GET("/blocks/:user_id", h.IsBlocked)

	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:partner_id/messages", h.ListMessages)
	r.GET("/users/:user_id", h.GetUser)

	r.POST("/messages", h.SendText)
	r.POST("/messages/media", h.SendMedia)
	r.PUT("/messages/:message_id", h.EditMessage)
	r.DELETE("/messages/:message_id", h.DeleteMessage)
	r.PUT("/messages/:message_id/delivered", h.MarkDelivered)
	r.PUT("/messages/:message_id/read", h.MarkRead)
}

// ListConversations returns one entry per partner, most recent first.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.svc.GetConversations(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// ListMessages returns one page of history with a partner and marks it read.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	partnerID, ok := intParam(c, "partner_id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(messaging.DefaultPageSize)))

	msgs, total, err := h.svc.ListMessages(c.Request.Context(), actorID(c), partnerID, page, pageSize)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	page, pageSize = messaging.ClampPage(page, pageSize)

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
			"has_more":  (page-1)*pageSize+len(msgs) < total,
		},
	})
}

// SendText stores a text message and pushes it to the receiver.
func (h *ChatHandler) SendText(c *gin.Context) {
	var req struct {
		ReceiverID  int    `json:"receiver_id" binding:"required"`
		Message     string `json:"message"`
		ReplyToID   *int64 `json:"reply_to_id"`
		IsEncrypted bool   `json:"is_encrypted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.KindValidation)})
		return
	}

	msg, err := h.svc.SendText(c.Request.Context(), actorID(c), req.ReceiverID, req.Message, req.ReplyToID, req.IsEncrypted)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SendMedia accepts a multipart upload, stores the file and sends a media message.
func (h *ChatHandler) SendMedia(c *gin.Context) {
	if h.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media uploads disabled"})
		return
	}
	actor := actorID(c)

	receiverID, err := strconv.Atoi(c.PostForm("receiver_id"))
	if err != nil || receiverID <= 0 {
		writeError(c, h.log, apperr.Validation("receiver_id is required"))
		return
	}
	var kind models.MessageKind
	if raw := c.PostForm("message_type"); raw != "" {
		if kind, err = models.ParseMessageKind(raw); err != nil {
			writeError(c, h.log, err)
			return
		}
	}
	var replyTo *int64
	if raw := c.PostForm("reply_to_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, h.log, apperr.Validation("invalid reply_to_id"))
			return
		}
		replyTo = &id
	}
	var caption *string
	if raw := strings.TrimSpace(c.PostForm("message")); raw != "" {
		caption = &raw
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, h.log, apperr.Validation("file is required"))
		return
	}

	// Check the block first so rejected sends leave no file behind.
	blocked, err := h.svc.IsBlocked(c.Request.Context(), actor, receiverID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if blocked {
		writeError(c, h.log, apperr.Blocked("cannot send messages to this user"))
		return
	}

	stored, err := h.media.SaveMultipart(c.Request.Context(), fh)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if kind == "" {
		kind = stored.Kind
	}

	msg, err := h.svc.SendMedia(c.Request.Context(), actor, receiverID, kind, stored.Ref, caption, replyTo)
	if err != nil {
		if rmErr := h.media.Remove(c.Request.Context(), stored.Ref); rmErr != nil {
			h.log.Warn("media.remove.fail", "ref", stored.Ref, "err", rmErr)
		}
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the text of the caller's own message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.KindValidation)})
		return
	}

	msg, err := h.svc.EditText(c.Request.Context(), actorID(c), messageID, req.Message)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage tombstones the caller's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteMessage(c.Request.Context(), actorID(c), messageID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ChatHandler) MarkDelivered(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.AcknowledgeDelivered(c.Request.Context(), actorID(c), messageID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "delivered"})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.AcknowledgeRead(c.Request.Context(), actorID(c), messageID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
