package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"darkchat/identity"
)

// bearerToken берет токен из Authorization: Bearer или из ?token=
// (браузер не умеет ставить заголовки для WebSocket)
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// AuthMiddleware проверяет токен у провайдера и кладет в контекст
// user_id и identity
func AuthMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide Authorization Bearer token"})
			c.Abort()
			return
		}
		id, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		c.Set("user_id", id.UID)
		c.Set("identity", id)
		c.Next()
	}
}
