package routes

import (
	"github.com/gin-gonic/gin"

	"darkchat/api/handlers"
	"darkchat/api/middleware"
)

// PublicApi - REST-интенты клиента
func PublicApi(router *gin.Engine, h *handlers.Handlers) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", h.Register)
		publicEndpoints.POST("auth/login", h.Login)
		publicEndpoints.POST("auth/guest", h.Guest)
		publicEndpoints.GET("gifs/terms", h.PopularGIFTerms)
	}

	private := router.Group("/api/v1/", middleware.AuthMiddleware(h.Provider))
	{
		private.POST("auth/logout", h.Logout)

		private.GET("me", h.GetMe)
		private.PATCH("me", h.UpdateMe)
		private.GET("users/:id", h.UserGet)
		private.POST("users/:id/follow", h.Follow)
		private.DELETE("users/:id/follow", h.Unfollow)
		private.POST("users/:id/block", h.Block)

		// Лента
		private.GET("posts", h.GetFeed)
		private.POST("posts", h.CreatePost)
		private.POST("posts/:id/like", h.ToggleLike)
		private.GET("posts/:id/comments", h.ListComments)
		private.POST("posts/:id/comments", h.AddComment)
		private.POST("posts/:id/share", h.SharePost)

		// Чаты
		private.GET("chats", h.ListConversations)
		private.POST("chats", h.OpenChat)
		private.GET("chats/:id/messages", h.ListMessages)
		private.POST("chats/:id/messages", h.SendMessage)
		private.POST("chats/:id/read", h.MarkRead)

		// Истории
		private.GET("stories", h.ActiveStories)
		private.POST("stories", h.PublishStory)
		private.POST("stories/:owner/:item/view", h.ViewStory)
		private.POST("stories/:owner/:item/reply", h.ReplyToStory)

		private.GET("gifs/search", h.SearchGIFs)
		private.GET("gifs/trending", h.TrendingGIFs)
		private.GET("gifs/random", h.RandomGIF)
	}
	return private
}
