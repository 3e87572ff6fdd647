package handlers

import (
	"promptparty/apperr"

	"github.com/gin-gonic/gin"
)

// respondError writes err as {error, code, status}. Internal details never
// reach the client.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	c.AbortWithStatusJSON(status, gin.H{
		"error":  apperr.MessageOf(err),
		"code":   code,
		"status": status,
	})
}

func bindError(c *gin.Context, err error) {
	respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
}

// currentUser returns the authenticated user id set by the auth middleware.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		respondError(c, apperr.ErrUnauthenticated)
		return "", false
	}
	return userID, true
}
