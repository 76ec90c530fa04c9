package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"darkchat/giphy"
	"darkchat/identity"
	"darkchat/services"
	"darkchat/store"
)

// Deps - сервисы, которые шлюз выставляет наружу
type Deps struct {
	Provider      identity.Provider
	Domain        string
	Profiles      *services.ProfileService
	Feed          *services.FeedService
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Stories       *services.StoryService
	Sharer        services.Sharer
	Follower      services.Follower
	Blocker       services.Blocker
	StoryReplier  services.StoryReplier
	Giphy         *giphy.Client
	Texts         services.Texts
	Logger        *zap.Logger
	// ServiceOptions передаются менеджеру сессий каждого запроса
	ServiceOptions []services.Option
}

// Handlers - HTTP и WebSocket обработчики шлюза
type Handlers struct {
	Deps
	Conns *ConnManager
}

func New(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	unimplemented := services.Unimplemented{Texts: deps.Texts}
	if deps.Sharer == nil {
		deps.Sharer = unimplemented
	}
	if deps.Follower == nil {
		deps.Follower = unimplemented
	}
	if deps.Blocker == nil {
		deps.Blocker = unimplemented
	}
	if deps.StoryReplier == nil {
		deps.StoryReplier = unimplemented
	}
	return &Handlers{Deps: deps, Conns: NewConnManager(deps.Logger)}
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// respondError отвечает коротким локализованным сообщением
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrDuplicateUsername):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrStoryNotFound),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrInvalidChannel),
		errors.Is(err, services.ErrInvalidStoryKind):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotImplemented),
		errors.Is(err, giphy.ErrNoAPIKey):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": services.UserMessage(err, h.Texts)})
}

func (h *Handlers) badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}
