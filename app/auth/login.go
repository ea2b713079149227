package auth

import (
	"errors"
	"net/http"

	"nimbus/account-api/internal"
	"nimbus/account-api/internal/service"
	"nimbus/account-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// OAuth2 password flow field names, the email goes in username
type loginBody struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func Login(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if data.Username == "" || data.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Email and password fields can't be empty",
			"requestID": requestID,
		})
		return
	}

	user, err := d.Auth.AuthenticateUser(data.Username, data.Password)
	if err != nil {
		if errors.Is(err, service.ErrIncorrectPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "Incorrect email or password",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to authenticate user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	accessToken, err := security.MakeAccessToken(
		user.ID,
		viper.GetString("security.jwt_secret"),
		viper.GetDuration("security.token_ttl"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate access token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}
