package middleware

import (
	"net/http"
	"strings"

	"promptparty/apperr"

	"github.com/gin-gonic/gin"
)

type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// AuthMiddleware accepts "Authorization: Bearer <token>" or, for websocket
// upgrades that cannot set headers, a ?token= query parameter. The user id
// is stored under "user_id".
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			unauthorized(c, "authorization required")
			return
		}

		userID, err := validator.ValidateToken(token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":  message,
		"code":   apperr.CodeUnauthenticated,
		"status": http.StatusUnauthorized,
	})
}
