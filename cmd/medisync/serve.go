package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medisync/medisync/internal/config"
	"github.com/medisync/medisync/internal/domain/lab"
	"github.com/medisync/medisync/internal/domain/note"
	"github.com/medisync/medisync/internal/domain/patient"
	"github.com/medisync/medisync/internal/platform/auth"
	"github.com/medisync/medisync/internal/platform/db"
	"github.com/medisync/medisync/internal/platform/middleware"
	"github.com/medisync/medisync/internal/platform/reporting"
	"github.com/medisync/medisync/internal/platform/telemetry"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := loadRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cfg.Validate(); err != nil {
		return err
	}
	rt.logger.Info().Msg("connected to database")

	e := newServer(rt.cfg, rt.logger, rt.pool, telemetry.NewMetrics())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + rt.cfg.Port
		rt.logger.Info().Str("addr", addr).Str("env", rt.cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	rt.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	rt.logger.Info().Msg("server stopped")
	return nil
}

// newServer assembles the echo instance. Public endpoints sit on the root;
// the API group adds authentication and the per-request transaction.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("", authMiddleware(cfg, logger), db.TxMiddleware(pool, logger))

	patients := patient.NewService(patient.NewRepo(pool))
	labs := lab.NewService(lab.NewRepo(pool), patients, metrics)
	notes := note.NewService(note.NewRepo(pool), patients, metrics)

	patient.NewHandler(patients).RegisterRoutes(api)
	lab.NewHandler(labs).RegisterRoutes(api)
	note.NewHandler(notes).RegisterRoutes(api)
	reporting.NewHandler(pool).RegisterRoutes(api)

	// Groups with middleware also claim unmatched paths under their prefix,
	// which would answer 401 instead of 404. Re-register those bare.
	for _, r := range e.Routes() {
		if r.Method == echo.RouteNotFound {
			e.RouteNotFound(r.Path, echo.NotFoundHandler)
		}
	}
	return e
}

// authMiddleware verifies bearer tokens unless a development server runs
// without a signing key, in which case every caller is the dev admin.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using development authentication")
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	})
}
