package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/petit/internal/config"
	"github.com/vadimbarashkov/petit/internal/service"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/vadimbarashkov/petit/internal/api/http"
)

func newLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("petit", httplog.Options{
		JSON:     cfg.Env != config.EnvDev,
		Concise:  cfg.Env == config.EnvDev,
		LogLevel: slog.LevelInfo,
	})
}

// newHandler builds the service graph on top of an opened store.
func newHandler(cfg *config.Config, logger *httplog.Logger, svc *service.ShortcodeService) (http.Handler, *service.Redirector) {
	redirector := service.NewRedirector(
		svc,
		service.WithFallback(cfg.App.NotFoundDestination),
		service.WithHitTimeout(cfg.App.HitTimeout),
		service.WithRedirectLogger(logger.Logger),
	)

	router := myhttp.NewRouter(logger, svc, redirector, myhttp.Options{
		APIBaseURL:     cfg.App.APIBaseURL,
		ServiceBaseURL: cfg.App.ServiceBaseURL,
		RequireSSL:     cfg.App.RequireSSL,
		SuggestLength:  cfg.App.SuggestLength,
	})

	return router, redirector
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// pending hits before closing the store.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to open storage: %w", op, err)
	}
	defer store.Close()

	svc := service.NewShortcodeService(
		store,
		service.WithSuggestLength(cfg.App.SuggestLength, cfg.App.MaxSuggestLength),
		service.WithLogger(logger.Logger),
	)

	handler, redirector := newHandler(cfg, logger, svc)
	defer redirector.Wait()

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.Bool("tls", cfg.HTTPServer.TLS()),
		)

		var err error
		if cfg.HTTPServer.TLS() {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
