package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"darkchat/services"
)

const maxAvatarSize = 5 << 20

func (h *Handlers) GetMe(c *gin.Context) {
	profile, err := h.Profiles.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handlers) UserGet(c *gin.Context) {
	profile, err := h.Profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe - multipart-форма: displayName, bio и файл avatar
func (h *Handlers) UpdateMe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarSize+(1<<20))
	var upd services.ProfileUpdate
	if v, ok := c.GetPostForm("displayName"); ok {
		upd.DisplayName = &v
	}
	if v, ok := c.GetPostForm("bio"); ok {
		upd.Bio = &v
	}
	if fh, err := c.FormFile("avatar"); err == nil {
		file, err := fh.Open()
		if err != nil {
			h.badRequest(c)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxAvatarSize))
		if err != nil {
			h.badRequest(c)
			return
		}
		upd.Avatar = &services.AvatarUpload{Filename: fh.Filename, Data: data}
	}

	profile, err := h.Profiles.Update(c.Request.Context(), currentUserID(c), upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handlers) Follow(c *gin.Context) {
	h.respondCapability(c, h.Follower.Follow(c.Request.Context(), currentUserID(c), c.Param("id")))
}

func (h *Handlers) Unfollow(c *gin.Context) {
	h.respondCapability(c, h.Follower.Unfollow(c.Request.Context(), currentUserID(c), c.Param("id")))
}

func (h *Handlers) Block(c *gin.Context) {
	h.respondCapability(c, h.Blocker.Block(c.Request.Context(), currentUserID(c), c.Param("id")))
}

func (h *Handlers) respondCapability(c *gin.Context, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
