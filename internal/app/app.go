package app

import (
	"context"
	"net/http"
	"time"

	"auth-shell/internal/authctx"
	"auth-shell/internal/config"
)

type App struct {
	httpServer *http.Server
	auth       *authctx.Provider
	cleanup    func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, auth, cleanup, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		auth:       auth,
		cleanup:    cleanup,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

func (a *App) Run() error {
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.cleanup != nil {
		return a.cleanup()
	}
	return nil
}
