package app

import (
	"context"
	"net/http"
	"time"

	"auth-shell/internal/auth/client"
	"auth-shell/internal/auth/handler"
	"auth-shell/internal/auth/provider/auth0"
	"auth-shell/internal/authctx"
	"auth-shell/internal/config"
	"auth-shell/internal/middleware"
	"auth-shell/internal/session"
	"auth-shell/internal/shell"

	"github.com/gin-gonic/gin"
)

// discoveryTimeout bounds the identity client construction.
const discoveryTimeout = 15 * time.Second

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, *authctx.Provider, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	flowStore := session.NewFlowStore([]byte(cfg.SessionSecret), cfg.CookieSecure)

	authProvider := authctx.New(
		func(ctx context.Context) (*client.Client, error) {
			ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
			defer cancel()

			idp, err := auth0.New(ctx, auth0.Config{
				Domain:       cfg.AuthDomain,
				IssuerURL:    cfg.AuthIssuerURL,
				ClientID:     cfg.AuthClientID,
				ClientSecret: cfg.AuthClientSecret,
				RedirectURL:  cfg.RedirectURL(),
				Audience:     cfg.AuthAudience,
				Scopes:       cfg.AuthScopes,
			})
			if err != nil {
				return nil, err
			}
			return client.New(idp, sessionStore, client.Options{SessionTTL: cfg.SessionTTL}), nil
		},
		flowStore,
		session.DefaultCookieOptions(cfg.CookieSecure),
	)

	startCtx, cancelStart := context.WithCancel(ctx)
	authProvider.Start(startCtx)

	authHandler := handler.NewHandler(cfg.PublicBaseURL)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		cancelStart()
		_ = infra.Close()
		return nil, nil, nil, err
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog())
	router.Use(middleware.RateLimitByIP(
		middleware.PerMinute(cfg.LoginRatePerMinute),
		isLoginTraffic,
	))
	router.Use(authProvider.Mount())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/", shell.Handler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"client": authProvider.Handle().Status().String(),
		})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth())
	authHandler.RegisterAPI(api)

	handler.LogRoutes(router)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, authProvider, func() error {
		cancelStart()
		return infra.Close()
	}, nil
}

// isLoginTraffic selects the requests that start or complete a login.
func isLoginTraffic(r *http.Request) bool {
	if r.URL.Path == "/login" {
		return true
	}
	return r.Method == http.MethodGet && authctx.IsRedirectCallback(r.URL)
}
