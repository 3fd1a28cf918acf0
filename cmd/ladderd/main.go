package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mubeyout/ladderd/internal/api"
	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/cron"
	migrate "github.com/mubeyout/ladderd/internal/migrate"
	"github.com/mubeyout/ladderd/pkg/providers/electric"
	"github.com/mubeyout/ladderd/pkg/providers/gas"
)

// registerProviders installs the provider clients the configured accounts
// resolve through. The fixture clients read recorded payloads from disk.
func registerProviders(cfg config.Config) {
	electric.Register(electric.NewFixtureClient(cfg.FixtureDir))
	gas.Register(gas.NewFixtureClient(cfg.FixtureDir))
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}

func main() {
	root := &cobra.Command{
		Use:   "ladderd",
		Short: "Tiered utility pricing resolution service",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerProviders(cfg)

			mux := api.NewMux()
			addr := ":" + cfg.Port
			log.Printf("ladderd listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic account refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerProviders(cfg)
			return cron.Run(signalContext(), cfg.DBDriver, cfg.DBDSN)
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the batch refresh worker with per-account progress tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			registerProviders(cfg)
			return cron.RunBatch(signalContext(), cfg.DBDriver, cfg.DBDSN)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Up(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Down(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Status(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
	)

	root.AddCommand(serveCmd, workerCmd, batchCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		log.Fatalf("ladderd: %v", err)
	}
}
