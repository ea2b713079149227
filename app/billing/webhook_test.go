package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nimbus/account-api/internal"
	"nimbus/account-api/internal/model"
	"nimbus/account-api/internal/store"
	"nimbus/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

func newTestRouter(t *testing.T) (*gin.Engine, *store.Users) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	viper.Set("stripe.webhook_secret", testWebhookSecret)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(&model.User{}))

	users := store.NewUsers(conn)
	d := &internal.Deps{DB: conn, Users: users}

	r := gin.New()
	r.Use(middleware.NewRequestIDMiddleware())
	r.POST("/webhook", func(c *gin.Context) { Webhook(c, d) })

	return r, users
}

func seedUser(t *testing.T, users *store.Users) {
	t.Helper()

	require.NoError(t, users.Create(&model.User{
		ID:           "u1",
		Email:        "a@x.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		CreatedAt:    time.Now().UTC(),
	}))
}

func stripeEvent(eventType, object string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object)
}

// signPayload builds a Stripe-Signature header the way Stripe does,
// HMAC-SHA256 over "<timestamp>.<payload>" keyed with the endpoint secret
func signPayload(payload, secret string) string {
	ts := time.Now().Unix()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)

	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postEvent(r *gin.Engine, payload, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	r, users := newTestRouter(t)
	seedUser(t, users)

	// Stripe reports the address with whatever casing the customer typed
	payload := stripeEvent("checkout.session.completed",
		`{"customer_email":"A@X.com","customer":"cus_123"}`)

	w := postEvent(r, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	u, err := users.GetByID("u1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionActive, u.SubscriptionStatus)
	assert.Equal(t, "cus_123", u.StripeCustomerID)
}

func TestWebhookSubscriptionDeleted(t *testing.T) {
	r, users := newTestRouter(t)
	seedUser(t, users)
	require.NoError(t, users.SetSubscription("a@x.com", "cus_123", SubscriptionActive))

	payload := stripeEvent("customer.subscription.deleted",
		`{"id":"sub_1","customer":"cus_123"}`)

	w := postEvent(r, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	u, err := users.GetByID("u1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCanceled, u.SubscriptionStatus)
}

func TestWebhookBadSignature(t *testing.T) {
	r, users := newTestRouter(t)
	seedUser(t, users)

	payload := stripeEvent("checkout.session.completed",
		`{"customer_email":"a@x.com","customer":"cus_123"}`)

	// Missing header
	w := postEvent(r, payload, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Signed with the wrong secret
	w = postEvent(r, payload, signPayload(payload, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	u, err := users.GetByID("u1")
	require.NoError(t, err)
	assert.Empty(t, u.SubscriptionStatus)
}

func TestWebhookUnhandledEvent(t *testing.T) {
	r, users := newTestRouter(t)
	seedUser(t, users)

	payload := stripeEvent("invoice.paid", `{"id":"in_1"}`)

	w := postEvent(r, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	u, err := users.GetByID("u1")
	require.NoError(t, err)
	assert.Empty(t, u.SubscriptionStatus)
}
