package middleware

import (
	"net/http"
	"strings"

	"github.com/Ayash-Bera/ctxinject/backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// RequireUser rejects requests without a caller identity. Authentication happens
// upstream; this only carries the already-verified id into the handlers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, "Missing caller identity", nil)
			return
		}
		if !utils.ValidUserID(userID) {
			utils.AbortWithError(c, http.StatusUnauthorized, "Malformed caller identity", nil)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity stored by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
