package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"darkchat/services"
)

type StoryReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handlers) ActiveStories(c *gin.Context) {
	bundles, err := h.Stories.FetchActive(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": bundles})
}

func (h *Handlers) PublishStory(c *gin.Context) {
	var req services.StoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	item, err := h.Stories.Publish(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handlers) ViewStory(c *gin.Context) {
	if err := h.Stories.MarkViewed(c.Request.Context(), c.Param("owner"), c.Param("item"), currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) ReplyToStory(c *gin.Context) {
	var req StoryReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	h.respondCapability(c, h.StoryReplier.ReplyToStory(c.Request.Context(), currentUserID(c), c.Param("owner"), c.Param("item"), req.Content))
}
