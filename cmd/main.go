// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server and the
// notification dispatcher.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/database"
	"github.com/Shivanand-hulikatti/mentor-events/internal/dispatcher"
	"github.com/Shivanand-hulikatti/mentor-events/internal/handler"
	"github.com/Shivanand-hulikatti/mentor-events/internal/logging"
	"github.com/Shivanand-hulikatti/mentor-events/internal/notify"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/mentor-events/internal/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config/config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "mentor-events: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the event store ───────────────────────────────────────────
	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── 2. Notification gateway and outbox dispatcher ─────────────────────
	gateway, err := notify.New(ctx, cfg.Notify, log)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			log.WithError(err).Warn("close notification gateway")
		}
	}()

	disp := dispatcher.New(store.Outbox(), gateway, dispatcher.Options{
		Interval:    cfg.Notify.Interval,
		BatchSize:   cfg.Notify.BatchSize,
		MaxAttempts: cfg.Notify.MaxAttempts,
		SendTimeout: cfg.Notify.SendTimeout,
	}, log)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	loc, err := cfg.Events.Location()
	if err != nil {
		return fmt.Errorf("events timezone: %w", err)
	}
	eventSvc := service.NewEventService(store, log, service.Options{
		Location: loc,
		PageSize: cfg.Events.PageSize,
		Waker:    disp,
	})
	coord := service.NewCoordinator(store, log, nil)
	eventHandler := handler.NewEventHandler(eventSvc, coord, log)
	auth := handler.NewAuthenticator(cfg.Auth)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(eventHandler, auth, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ── 4. Run until a shutdown signal ────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"database": cfg.Database.Driver,
			"notify":   cfg.Notify.Driver,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		disp.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (repository.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("opened sqlite store")
		return sqlite.New(db), nil
	default:
		pool, err := database.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.WithFields(logrus.Fields{"host": cfg.Host, "name": cfg.Name}).Info("connected to postgres")
		return postgres.New(pool), nil
	}
}
