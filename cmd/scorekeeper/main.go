// Command scorekeeper serves and maintains the score database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scorekeeper/internal/adapters/http/api"
	app "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/config"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/urfave/cli/v2"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		// Use plain stderr since the logger may not be initialized
		os.Stderr.WriteString("scorekeeper: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "scorekeeper",
		Usage: "rhythm game score store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{config.EnvConfigFile},
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newImportLevelsCommand(),
			newSnapshotCommand(),
		},
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the backup schedule",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			log := logger.Get()

			svc := newService(cfg)
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("failed to start service: %w", err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := svc.Stop(stopCtx); err != nil {
					log.Error(stopCtx, "service stop failed", logger.Error(err))
				}
			}()

			srv := newHTTPServer(cfg, svc)
			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Wait for shutdown signal or a listener failure
			select {
			case <-ctx.Done():
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
			}
			log.Info(ctx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
}

func newImportLevelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-levels",
		Usage: "add the levels of a level list file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "level list (defaults to level_list_path)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			path := c.String("file")
			if path == "" {
				path = cfg.LevelListPath
			}

			return withService(c.Context, cfg, func(ctx context.Context, svc *app.Service) error {
				added, err := svc.ImportLevelList(ctx, path)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "added %d levels from %s\n", added, path)
				return err
			})
		},
	}
}

func newSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "write a backup now",
		Action: func(c *cli.Context) error {
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			return withService(c.Context, cfg, func(ctx context.Context, svc *app.Service) error {
				path, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, path)
				return err
			})
		},
	}
}

// setup loads configuration and initializes logging.
func setup(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv(config.EnvConfigFile, path); err != nil {
			return nil, err
		}
	}

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := initLogging(cfg, c.App.ErrWriter); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.Config, w io.Writer) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func newService(cfg *config.Config, extra ...app.Option) *app.Service {
	opts := []app.Option{
		app.WithLogger(logger.Get().Named("service")),
		app.WithDBPath(cfg.DBPath),
		app.WithBusyTimeout(cfg.BusyTimeout),
		app.WithBackupDir(cfg.BackupDir),
		app.WithBackupInterval(cfg.BackupInterval),
		app.WithBackupRetain(cfg.BackupRetain),
		app.WithLevelListPath(cfg.LevelListPath),
	}
	return app.New(append(opts, extra...)...)
}

// withoutSchedule disables the backup schedule and the first-run import for
// one-shot commands.
func withoutSchedule() []app.Option {
	return []app.Option{app.WithBackupInterval(0), app.WithLevelListPath("")}
}

func withService(ctx context.Context, cfg *config.Config, fn func(context.Context, *app.Service) error) error {
	svc := newService(cfg, withoutSchedule()...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	runErr := fn(ctx, svc)
	if err := svc.Stop(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	apiServer := api.NewServer(svc, svc,
		api.WithAdminChecker(api.TokenAdminChecker{Token: cfg.AdminToken}),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithLogger(logger.Get().Named("http")),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
