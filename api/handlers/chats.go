package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"darkchat/api/middleware"
	"darkchat/services"
)

type OpenChatRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	GIFURL  string `json:"gifUrl"`
}

func (h *Handlers) ListConversations(c *gin.Context) {
	views, err := h.Conversations.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": views,
		"unread":        services.TotalUnread(views),
	})
}

func (h *Handlers) OpenChat(c *gin.Context) {
	var req OpenChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	if _, err := h.Profiles.Get(c.Request.Context(), req.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	id, err := h.Messages.OpenChannel(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	if _, err := h.Messages.GetChannel(ctx, chatID, currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	messages, err := h.Messages.ListMessages(ctx, chatID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage - текст или гифка (gifUrl)
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	start := time.Now()
	var id string
	var err error
	if req.GIFURL != "" {
		id, err = h.Messages.SendGIF(c.Request.Context(), c.Param("id"), currentUserID(c), req.GIFURL)
	} else {
		id, err = h.Messages.Send(c.Request.Context(), c.Param("id"), currentUserID(c), req.Content)
	}
	middleware.RecordChatOperation("send", time.Since(start), err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handlers) MarkRead(c *gin.Context) {
	start := time.Now()
	n, err := h.Messages.MarkRead(c.Request.Context(), c.Param("id"), currentUserID(c))
	middleware.RecordChatOperation("mark_read", time.Since(start), err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
