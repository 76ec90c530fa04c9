package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"darkchat/giphy"
)

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

func (h *Handlers) giphyClient(c *gin.Context) (*giphy.Client, bool) {
	if h.Giphy == nil {
		h.respondError(c, giphy.ErrNoAPIKey)
		return nil, false
	}
	return h.Giphy, true
}

func (h *Handlers) SearchGIFs(c *gin.Context) {
	client, ok := h.giphyClient(c)
	if !ok {
		return
	}
	q := c.Query("q")
	if q == "" {
		h.badRequest(c)
		return
	}
	page, err := client.Search(c.Request.Context(), q, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) TrendingGIFs(c *gin.Context) {
	client, ok := h.giphyClient(c)
	if !ok {
		return
	}
	page, err := client.Trending(c.Request.Context(), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) RandomGIF(c *gin.Context) {
	client, ok := h.giphyClient(c)
	if !ok {
		return
	}
	gif, err := client.Random(c.Request.Context(), c.Query("tag"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gif)
}

func (h *Handlers) PopularGIFTerms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"terms": giphy.PopularTerms(h.Texts.Locale())})
}
