package middleware

import (
	"net/http"

	"go-hrms/internal/shared/apperror"

	"github.com/gin-gonic/gin"
)

// ExtractUserID guards routes that need a caller identity and republishes it
// under user_id_validated for the idempotency middleware.
func ExtractUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			abortWith(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "User is not authenticated")
			return
		}

		userIDStr, ok := userID.(string)
		if !ok || userIDStr == "" {
			abortWith(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "Invalid user_id format")
			return
		}

		c.Set("user_id_validated", userIDStr)
		c.Next()
	}
}
