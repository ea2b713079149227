// Package app wires the HTTP surface together
package app

import (
	"fmt"
	"time"

	"nimbus/account-api/app/auth"
	"nimbus/account-api/app/billing"
	"nimbus/account-api/app/root"
	"nimbus/account-api/app/user"
	"nimbus/account-api/db"
	"nimbus/account-api/internal"
	"nimbus/account-api/internal/service"
	"nimbus/account-api/internal/store"
	"nimbus/account-api/pkg/middleware"
	"nimbus/account-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var cacheStore = persist.NewMemoryStore(time.Minute)

func NewRouter() (*gin.Engine, error) {
	makeLogger()

	conn, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	users := store.NewUsers(conn)
	tokens := store.NewTokens(conn)
	resends := store.NewResends(conn)

	d := &internal.Deps{
		DB:    conn,
		Users: users,
		Auth:  service.NewAuth(users, tokens, resends, security.New(), service.NewSMTPMailer()),
	}

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors"),
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	authRequired := middleware.NewAuthMiddleware(users)
	rateLimit := viper.GetInt("security.rate_limit")
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
		CleanupInterval:   time.Second,
	})

	m := router.Group("", rateLimiter)
	{
		// GET /			-> Greeting, mostly for load balancer checks
		m.GET("/", cacheFor(60), root.Index)

		// HEAD /heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// POST /webhook		-> Receives signed Stripe billing events
		m.POST("/webhook", func(c *gin.Context) { billing.Webhook(c, d) })
	}

	a := m.Group("/auth", middleware.BodySizeLimiter(1<<20))
	{
		// POST /auth/register 		-> Registers a new user and sends a verification email
		a.POST("/register", func(c *gin.Context) { auth.Register(c, d) })

		// POST /auth/login 		-> Checks credentials and returns a bearer access token
		a.POST("/login", func(c *gin.Context) { auth.Login(c, d) })

		// POST /auth/change-password	-> Replaces the password of the logged in user
		a.POST("/change-password", authRequired, func(c *gin.Context) { auth.ChangePassword(c, d) })

		// GET /auth/verify/:token	-> Confirms an email address with a mailed token
		a.GET("/verify/:token", func(c *gin.Context) { auth.Verify(c, d) })

		// POST /auth/resend-verification -> Sends a fresh verification email, rate limited
		a.POST("/resend-verification", func(c *gin.Context) { auth.ResendVerification(c, d) })

		// POST /auth/forgot-password	-> Sends a password reset email, always answers 200
		a.POST("/forgot-password", func(c *gin.Context) { auth.ForgotPassword(c, d) })

		// POST /auth/reset-password/:token -> Replaces the password using a mailed token
		a.POST("/reset-password/:token", func(c *gin.Context) { auth.ResetPassword(c, d) })
	}

	u := m.Group("/users")
	{
		// GET /users/me		-> Returns the current user's public info
		u.GET("/me", authRequired, func(c *gin.Context) { user.Me(c, d) })
	}

	// Expired purpose tokens are rare, checking daily is plenty
	go service.TokenCleanup(time.Hour*24, tokens)

	// Unverified accounts get a week to verify before removal
	go service.AccountCleanup(time.Hour*24, conn)

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(cacheStore, time.Second*time.Duration(sec))
}
