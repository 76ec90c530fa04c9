package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"darkchat/services"
)

type ContentRequest struct {
	Content string `json:"content" binding:"required"`
}

type ShareRequest struct {
	To   []string `json:"to" binding:"required"`
	Note string   `json:"note"`
}

// GetFeed - последние посты; ?liked=true оставляет лайкнутые текущим пользователем
func (h *Handlers) GetFeed(c *gin.Context) {
	posts, err := h.Feed.ListPosts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if c.Query("liked") == "true" {
		posts = services.LikedBy(posts, currentUserID(c))
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handlers) CreatePost(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	author, err := h.Profiles.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	id, err := h.Feed.CreatePost(c.Request.Context(), author, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	post, err := h.Feed.GetPost(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handlers) ToggleLike(c *gin.Context) {
	post, err := h.Feed.ToggleLike(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handlers) ListComments(c *gin.Context) {
	comments, err := h.Feed.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *Handlers) AddComment(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	author, err := h.Profiles.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	id, err := h.Feed.AddComment(c.Request.Context(), c.Param("id"), author, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handlers) SharePost(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	if err := h.Sharer.SharePost(c.Request.Context(), currentUserID(c), c.Param("id"), req.To, req.Note); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "shared"})
}
