package middleware

import (
	"errors"
	"net/http"
	"strings"

	"nimbus/account-api/internal/store"
	"nimbus/account-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewAuthMiddleware guards routes behind a bearer access token. On success
// the subject user ID is set as userID in the context. Anything short of a
// valid token for an existing user is a 403, the token itself never reveals
// why it was rejected
func NewAuthMiddleware(users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not authenticated",
				"requestID": requestID,
			})
			return
		}

		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not authenticated",
				"requestID": requestID,
			})
			return
		}

		userID, err := security.ParseAccessToken(tokenStr, viper.GetString("security.jwt_secret"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not authenticated",
				"requestID": requestID,
			})
			return
		}

		// A valid token for a since-deleted account is still rejected
		if _, err := users.GetByID(userID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				zap.L().Error("Failed to check if user exists",
					zap.Error(err), zap.String("requestID", requestID))
			}

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not authenticated",
				"requestID": requestID,
			})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
