package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"darkchat/identity"
	"darkchat/models"
	"darkchat/services"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password" binding:"required"`
}

type AuthResponse struct {
	UID     string             `json:"uid"`
	Token   string             `json:"token"`
	Guest   bool               `json:"guest"`
	Profile models.UserProfile `json:"profile"`
}

// sessions - менеджер сессии на время одного запроса
func (h *Handlers) sessions() *services.SessionManager {
	return services.NewSessionManager(identity.NewClient(h.Provider), h.Profiles, h.Domain, h.ServiceOptions...)
}

func authResponse(s *services.Session) AuthResponse {
	return AuthResponse{
		UID:     s.Identity.UID,
		Token:   s.Identity.Token,
		Guest:   s.Identity.Anonymous,
		Profile: s.Profile,
	}
}

func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	session, err := h.sessions().Register(c.Request.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse(session))
}

func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	session, err := h.sessions().SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(session))
}

func (h *Handlers) Guest(c *gin.Context) {
	session, err := h.sessions().SignInGuest(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse(session))
}

// Logout завершает сессию токена из заголовка
func (h *Handlers) Logout(c *gin.Context) {
	id, ok := c.Get("identity")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err := h.Provider.EndSession(c.Request.Context(), id.(identity.Identity)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}
