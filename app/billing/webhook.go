// Package billing receives payment events from Stripe. Payment processing
// itself lives on Stripe's side, this endpoint only verifies the event
// signature and mirrors the subscription state onto the user record
package billing

import (
	"encoding/json"
	"net/http"

	"nimbus/account-api/internal"
	"nimbus/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// Subscription states mirrored onto the user row
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

type checkoutSession struct {
	CustomerEmail string `json:"customer_email"`
	Customer      string `json:"customer"`
}

type subscriptionObject struct {
	Customer string `json:"customer"`
}

func Webhook(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing Stripe signature",
			"requestID": requestID,
		})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Can't read request body",
			"requestID": requestID,
		})
		return
	}

	event, err := webhook.ConstructEvent(payload, sig, viper.GetString("stripe.webhook_secret"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid Stripe signature",
			"requestID": requestID,
		})

		zap.L().Warn("Rejected webhook with bad signature", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.CustomerEmail == "" {
			zap.L().Warn("Checkout event without a customer email", zap.String("requestID", requestID))
			break
		}

		// Stripe reports whatever casing the customer typed at checkout,
		// the users table stores normalized addresses
		email := validators.NormalizeEmail(session.CustomerEmail)

		if err := d.Users.SetSubscription(email, session.Customer, SubscriptionActive); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to update subscription status", zap.Error(err), zap.String("requestID", requestID))
			return
		}
	case "customer.subscription.deleted":
		var sub subscriptionObject
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil || sub.Customer == "" {
			zap.L().Warn("Subscription event without a customer ID", zap.String("requestID", requestID))
			break
		}

		if err := d.Users.SetSubscriptionStatusByCustomer(sub.Customer, SubscriptionCanceled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to update subscription status", zap.Error(err), zap.String("requestID", requestID))
			return
		}
	default:
		zap.L().Debug("Ignoring unhandled Stripe event", zap.String("type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
	})
}
