package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/calibrate/internal/adapters/http/api"
	"github.com/okian/calibrate/internal/adapters/http/swagger"
	repository "github.com/okian/calibrate/internal/adapters/repository"
	app "github.com/okian/calibrate/internal/app"
	"github.com/okian/calibrate/internal/config"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(strings.ToLower(cfg.LogFormat))); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithRounds(cfg.Rounds),
		app.WithSelectorSeed(cfg.SelectorSeed),
		app.WithSessionTTL(cfg.SessionTTL),
		app.WithAsyncPersistence(cfg.Persistence.Async),
		app.WithQueueSize(cfg.Persistence.QueueSize),
		app.WithWorkerCount(cfg.Persistence.Workers),
		app.WithMaxRetries(cfg.Persistence.MaxRetries),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to start service: %w", err)
	}
	// Stop closes the store.
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// newMux registers the business API and its docs. Metrics are served on
// /healthz.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// openStore builds the rating store selected by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		var opts []repository.Option
		if cfg.Store.MaxItemsPerOwner > 0 {
			opts = append(opts, repository.WithMaxItemsPerOwner(cfg.Store.MaxItemsPerOwner))
		}
		return repository.NewTreapStore(ctx, opts...), nil
	case config.DriverRedis:
		return repository.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB,
			repository.WithRedisPrefix(cfg.Store.RedisPrefix))
	case config.DriverPostgres:
		db, err := repository.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.Store.Driver)
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the session and queue gauges until
// ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics relies on GetStats publishing the session and queue
// gauges as a side effect.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if total, ok := stats["totalItems"].(int); ok {
		metrics.UpdateRepositoryRecordsTotal(total)
	}
}
