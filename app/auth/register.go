// Package auth contains the credential lifecycle endpoints
package auth

import (
	"errors"
	"net/http"

	"nimbus/account-api/internal"
	"nimbus/account-api/internal/service"
	"nimbus/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const weakPasswordMsg = "Password must be at least 8 characters long and contain at least one number and one letter"

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	user, err := d.Auth.CreateUserWithVerification(data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     weakPasswordMsg,
				"requestID": requestID,
			})
		case errors.Is(err, validators.ErrEmailEmpty), errors.Is(err, validators.ErrEmailInvalid):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "This email is already registered. Please login or use a different email",
				"requestID": requestID,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to register user", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	c.JSON(http.StatusOK, user.Public())
}
