package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"eventhub/internal/app"
	"eventhub/internal/auth"
	"eventhub/internal/config"
	"eventhub/internal/db"
	"eventhub/internal/event"
	httpx "eventhub/internal/http"
	"eventhub/internal/jobs"
	"eventhub/internal/logging"
	"eventhub/internal/supervisor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "eventhub",
		Short:        "Event registrations, ticket and certificate mail",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), promoteCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with the job workers and reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(true)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the job workers and reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := open()
			if err != nil {
				return err
			}
			if err := db.AutoMigrateAndIndexes(gdb); err != nil {
				return err
			}
			logging.Info().Msg("migrations applied")
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Give a user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := open()
			if err != nil {
				return err
			}
			res := gdb.Model(&auth.User{}).Where("email = ?", args[0]).Update("role", auth.RoleAdmin)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("no user with email %q", args[0])
			}
			logging.Info().Str("email", args[0]).Msg("user promoted to admin")
			return nil
		},
	}
}

func open() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.DatabaseURL == "" {
		return cfg, nil, fmt.Errorf("missing env: DATABASE_URL")
	}
	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, gdb, nil
}

func run(withHTTP bool) error {
	cfg, gdb, err := open()
	if err != nil {
		return err
	}
	if withHTTP {
		if err := cfg.RequireServer(); err != nil {
			return err
		}
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return err
	}

	log := logging.Logger()
	store := jobs.NewGormStore(gdb)
	events := event.NewService(gdb, cfg.AppBaseURL, log.With().Str("component", "events").Logger())

	bg, err := app.NewBackground(cfg, store, events, app.NewTransport(cfg, log), log)
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(log, supervisor.DefaultTreeConfig())
	for _, svc := range bg.Services {
		tree.AddWorker(svc)
	}

	if withHTTP {
		r := httpx.NewRouter(cfg, httpx.Deps{
			DB:     gdb,
			JWT:    auth.NewJWT(cfg.JWTSecret),
			Events: events,
			Jobs:   store,
			Log:    log.With().Str("component", "http").Logger(),
		})
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddAPI(supervisor.NewHTTPService(srv, 5*time.Second))
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
