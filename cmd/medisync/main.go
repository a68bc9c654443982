package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medisync/medisync/internal/config"
	"github.com/medisync/medisync/internal/platform/db"
	"github.com/medisync/medisync/internal/platform/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medisync",
		Short:        "Clinical data ingestion and query service",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(notesCmd())
	return root
}

// runtime bundles what every database-backed command needs.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	closer io.Closer
}

func (r *runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
	_ = r.closer.Close()
}

func loadRuntime(ctx context.Context, withDB bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, closer := logging.New(logging.OptionsFromConfig(cfg))
	rt := &runtime{cfg: cfg, logger: logger, closer: closer}
	if !withDB {
		return rt, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	rt.pool = pool
	return rt, nil
}
