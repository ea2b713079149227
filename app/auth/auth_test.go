package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"nimbus/account-api/internal"
	"nimbus/account-api/internal/model"
	"nimbus/account-api/internal/service"
	"nimbus/account-api/internal/store"
	"nimbus/account-api/pkg/middleware"
	"nimbus/account-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sentMail struct {
	To    string
	Token string
}

type fakeMailer struct {
	verifications []sentMail
	resets        []sentMail
}

func (m *fakeMailer) SendVerification(to, token string) error {
	m.verifications = append(m.verifications, sentMail{to, token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, token string) error {
	m.resets = append(m.resets, sentMail{to, token})
	return nil
}

// newTestRouter assembles the auth routes the same way app.NewRouter does,
// minus config files, SMTP and the cleanup goroutines
func newTestRouter(t *testing.T) (*gin.Engine, *fakeMailer) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	viper.Set("security.jwt_secret", "test-secret")
	viper.Set("security.token_ttl", "1h")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(&model.User{}, &model.Token{}, &model.ResendRequest{}))

	users := store.NewUsers(conn)
	mailer := &fakeMailer{}

	d := &internal.Deps{
		DB:    conn,
		Users: users,
		Auth: service.NewAuth(
			users,
			store.NewTokens(conn),
			store.NewResends(conn),
			security.New(),
			mailer,
		),
	}

	authRequired := middleware.NewAuthMiddleware(users)

	router := gin.New()
	router.Use(middleware.NewRequestIDMiddleware())

	a := router.Group("/auth")
	{
		a.POST("/register", func(c *gin.Context) { Register(c, d) })
		a.POST("/login", func(c *gin.Context) { Login(c, d) })
		a.POST("/change-password", authRequired, func(c *gin.Context) { ChangePassword(c, d) })
		a.GET("/verify/:token", func(c *gin.Context) { Verify(c, d) })
		a.POST("/resend-verification", func(c *gin.Context) { ResendVerification(c, d) })
		a.POST("/forgot-password", func(c *gin.Context) { ForgotPassword(c, d) })
		a.POST("/reset-password/:token", func(c *gin.Context) { ResetPassword(c, d) })
	}

	return router, mailer
}

func doJSON(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, router *gin.Engine, email, password string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	w := doForm(router, "/auth/login", url.Values{
		"username": {email},
		"password": {password},
	})
	if w.Code != http.StatusOK {
		return w, ""
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)

	return w, body.AccessToken
}

func TestRegisterLoginScenario(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created model.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "a@x.com", created.Email)
	assert.False(t, created.Verified)
	assert.NotEmpty(t, created.ID)

	w, token := login(t, router, "a@x.com", "abc12345")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, token)

	w, _ = login(t, router, "a@x.com", "wrong1234")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRejections(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"short1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", `{"email":"not-an-email","password":"abc12345"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	router, mailer := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mailer.verifications, 1)

	token := mailer.verifications[0].Token

	w = doJSON(router, http.MethodGet, "/auth/verify/"+token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second use of the same token
	w = doJSON(router, http.MethodGet, "/auth/verify/"+token, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/auth/verify/bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Unauthenticated
	w = doJSON(router, http.MethodPost, "/auth/change-password",
		`{"current_password":"abc12345","new_password":"newpass99"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, token := login(t, router, "a@x.com", "abc12345")
	bearer := map[string]string{"Authorization": "Bearer " + token}

	w = doJSON(router, http.MethodPost, "/auth/change-password",
		`{"current_password":"wrong1234","new_password":"newpass99"}`, bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/change-password",
		`{"current_password":"abc12345","new_password":"abc12345"}`, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/change-password",
		`{"current_password":"abc12345","new_password":"short1"}`, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/change-password",
		`{"current_password":"abc12345","new_password":"newpass99"}`, bearer)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = login(t, router, "a@x.com", "abc12345")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = login(t, router, "a@x.com", "newpass99")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResendVerificationEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/resend-verification", `{"email":"nobody@x.com"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Registration just sent one, the cooldown is still running
	w = doJSON(router, http.MethodPost, "/auth/resend-verification", `{"email":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	router, mailer := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/forgot-password", `{"email":"nobody@x.com"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mailer.resets)

	doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)

	w = doJSON(router, http.MethodPost, "/auth/forgot-password", `{"email":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mailer.resets, 1)
}

func TestResetPasswordEndpoint(t *testing.T) {
	router, mailer := newTestRouter(t)

	doJSON(router, http.MethodPost, "/auth/register", `{"email":"a@x.com","password":"abc12345"}`, nil)

	w := doJSON(router, http.MethodPost, "/auth/forgot-password", `{"email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mailer.resets, 1)

	token := mailer.resets[0].Token

	w = doJSON(router, http.MethodPost, "/auth/reset-password/"+token, `{"new_password":"short1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/reset-password/"+token, `{"new_password":"newpass99"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/reset-password/"+token, `{"new_password":"another99"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/reset-password/bogus", `{"new_password":"newpass99"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = login(t, router, "a@x.com", "newpass99")
	assert.Equal(t, http.StatusOK, w.Code)
}
