package auth

import (
	"errors"
	"net/http"

	"nimbus/account-api/internal"
	"nimbus/account-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type forgotPasswordBody struct {
	Email string `json:"email"`
}

// ForgotPassword always answers 200 with the same message. A different
// response for unknown addresses would let anyone enumerate which emails
// have accounts
func ForgotPassword(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data forgotPasswordBody
	if err := c.ShouldBind(&data); err != nil || data.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Email field can't be empty",
			"requestID": requestID,
		})
		return
	}

	err := d.Auth.SendPasswordReset(data.Email)
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		zap.L().Error("Failed to send password reset", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Password reset email sent",
		"requestID": requestID,
	})
}
