package routes

import (
	"github.com/gin-gonic/gin"

	"darkchat/api/handlers"
	"darkchat/api/middleware"
)

// StreamApi - живые подписки через WebSocket
func StreamApi(router *gin.Engine, h *handlers.Handlers) *gin.RouterGroup {
	streamEndpoints := router.Group("/api/v1/ws/", middleware.AuthMiddleware(h.Provider))
	{
		streamEndpoints.GET("feed", h.WSFeed)
		streamEndpoints.GET("conversations", h.WSConversations)
		streamEndpoints.GET("chats/:id", h.WSChat)
		streamEndpoints.GET("posts/:id/comments", h.WSComments)
	}
	return streamEndpoints
}
