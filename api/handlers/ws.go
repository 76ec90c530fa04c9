package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"darkchat/models"
	"darkchat/services"
	"darkchat/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveStream поднимает WebSocket и держит подписку, пока клиент подключен
func (h *Handlers) serveStream(c *gin.Context, notify bool, subscribe func(client *wsClient) store.Unsubscribe) {
	userID := currentUserID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newWSClient(conn, h.Logger)
	defer client.Close()

	if notify {
		h.Conns.Add(userID, client)
		defer h.Conns.Remove(userID, client)
	}
	go client.writePump()
	client.Push(Frame{Event: "connected"})

	stop := subscribe(client)
	defer stop()

	client.readPump()
}

func (h *Handlers) streamError(client *wsClient, err error) bool {
	if err != nil {
		client.Push(Frame{Event: "error", Error: services.UserMessage(err, h.Texts)})
		return true
	}
	return false
}

// WSFeed - живая лента и уведомления пользователя
func (h *Handlers) WSFeed(c *gin.Context) {
	h.serveStream(c, true, func(client *wsClient) store.Unsubscribe {
		return h.Feed.SubscribePosts(func(posts []models.Post, err error) {
			if h.streamError(client, err) {
				return
			}
			client.Push(Frame{Event: "posts", Data: posts})
		})
	})
}

func (h *Handlers) WSConversations(c *gin.Context) {
	userID := currentUserID(c)
	h.serveStream(c, false, func(client *wsClient) store.Unsubscribe {
		return h.Conversations.Subscribe(userID, func(views []models.ConversationView, err error) {
			if h.streamError(client, err) {
				return
			}
			client.Push(Frame{Event: "conversations", Data: views})
		})
	})
}

func (h *Handlers) WSChat(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := h.Messages.GetChannel(c.Request.Context(), chatID, currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.serveStream(c, false, func(client *wsClient) store.Unsubscribe {
		return h.Messages.SubscribeMessages(chatID, func(messages []models.Message, err error) {
			if h.streamError(client, err) {
				return
			}
			client.Push(Frame{Event: "messages", Data: messages})
		})
	})
}

func (h *Handlers) WSComments(c *gin.Context) {
	postID := c.Param("id")
	h.serveStream(c, false, func(client *wsClient) store.Unsubscribe {
		return h.Feed.SubscribeComments(postID, func(comments []models.Comment, err error) {
			if h.streamError(client, err) {
				return
			}
			client.Push(Frame{Event: "comments", Data: comments})
		})
	})
}
