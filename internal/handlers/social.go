package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/models"
)

func (h *ChatHandler) SetOnline(c *gin.Context) {
	if err := h.svc.SetOnline(c.Request.Context(), actorID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_online": true})
}

func (h *ChatHandler) SetOffline(c *gin.Context) {
	if err := h.svc.SetOffline(c.Request.Context(), actorID(c)); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_online": false})
}

// SignalTyping tells :user_id that the caller is typing.
func (h *ChatHandler) SignalTyping(c *gin.Context) {
	toID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.svc.SignalTyping(c.Request.Context(), actorID(c), toID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// IsTyping reports whether :user_id is currently typing to the caller.
func (h *ChatHandler) IsTyping(c *gin.Context) {
	fromID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_typing": h.svc.IsTyping(actorID(c), fromID)})
}

func (h *ChatHandler) Block(c *gin.Context) {
	targetID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	created, err := h.svc.Block(c.Request.Context(), actorID(c), targetID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"blocked": true, "created": created})
}

func (h *ChatHandler) Unblock(c *gin.Context) {
	targetID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.svc.Unblock(c.Request.Context(), actorID(c), targetID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": false})
}

// ListBlocked returns the profiles the caller has blocked.
func (h *ChatHandler) ListBlocked(c *gin.Context) {
	users, err := h.svc.ListBlocked(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if users == nil {
		users = []models.UserView{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// IsBlocked reports whether a block exists in either direction.
func (h *ChatHandler) IsBlocked(c *gin.Context) {
	otherID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	blocked, err := h.svc.IsBlocked(c.Request.Context(), actorID(c), otherID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_blocked": blocked})
}

func (h *ChatHandler) GetUser(c *gin.Context) {
	userID, ok := intParam(c, "user_id")
	if !ok {
		return
	}
	profile, err := h.svc.PartnerProfile(c.Request.Context(), actorID(c), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}
