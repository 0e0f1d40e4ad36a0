package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamrelay/config"
	"streamrelay/handler"
	"streamrelay/handler/platforms"
	"streamrelay/internal/batch"
	"streamrelay/internal/domain"
	"streamrelay/internal/progress"
	"streamrelay/internal/relay"
	"streamrelay/internal/tool"
	"streamrelay/internal/transcode"
	"streamrelay/internal/worker"
	"streamrelay/observability"
	"streamrelay/storage"
	storagetypes "streamrelay/storage/types"
)

func main() {
	cfg := loadConfiguration()

	deps := initializeDependencies(cfg)

	app := buildApplication(cfg, deps)

	startApplication(cfg, app)
}

// Dependencies holds all initialized infrastructure components
type Dependencies struct {
	obs      *observability.DefaultProvider
	registry *prometheus.Registry
	storage  storagetypes.ObjectStorage
	store    *progress.MemoryStore
	ytdlp    *tool.YTDLP
	ffmpeg   *tool.FFmpeg
}

// Application holds the complete application stack
type Application struct {
	server  *http.Server
	batches *batch.Orchestrator
	jobs    *transcode.Service
	store   *progress.MemoryStore
	limiter *handler.RateLimiter
	logger  observability.Logger
	obs     *observability.DefaultProvider
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration() *config.Config {
	cfgProvider := config.GetProvider()
	cfgProvider.MustLoad()
	return cfgProvider.MustGet()
}

// initializeDependencies sets up all infrastructure dependencies
func initializeDependencies(cfg *config.Config) *Dependencies {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := observability.NewProvider(&observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		AdditionalFields: observability.Fields{
			"version": cfg.Version,
		},
		Registerer: registry,
	})

	logStartup(cfg, obs)

	untitled := domain.NewLocalizer(cfg.UI.Locale).Message(domain.MsgUntitled)

	return &Dependencies{
		obs:      obs,
		registry: registry,
		storage:  initializeStorage(cfg, obs),
		store:    progress.NewMemoryStore(cfg.Progress, obs.Logger("progress")),
		ytdlp:    tool.NewYTDLP(cfg.Tools, untitled, obs.Logger("tool.ytdlp"), obs.Metrics("tool")),
		ffmpeg:   tool.NewFFmpeg(cfg.Tools, obs.Logger("tool.ffmpeg"), obs.Metrics("tool")),
	}
}

// logStartup logs application startup information
func logStartup(cfg *config.Config, obs observability.Provider) {
	obs.Logger("main").Info(context.Background(), "Starting application", observability.Fields{
		"service":     cfg.ServiceName,
		"version":     cfg.Version,
		"environment": cfg.Environment,
		"addr":        cfg.HTTP.Addr,
	})
}

// initializeStorage sets up the artifact storage provider
func initializeStorage(cfg *config.Config, obs observability.Provider) storagetypes.ObjectStorage {
	logger := obs.Logger("storage")
	metrics := obs.Metrics("storage")

	provider := storage.GetProvider()
	if err := provider.Initialize(cfg, logger, metrics); err != nil {
		logger.Error(context.Background(), "Failed to initialize storage", err, nil)
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	logger.Info(context.Background(), "Storage initialized successfully", observability.Fields{
		"provider": provider.Name(),
	})
	return provider.MustGetStorage()
}

// buildApplication assembles the application layers
func buildApplication(cfg *config.Config, deps *Dependencies) *Application {
	obs := deps.obs
	untitled := domain.NewLocalizer(cfg.UI.Locale).Message(domain.MsgUntitled)

	relayer := relay.New(deps.ytdlp, deps.store, cfg.Relay, obs.Logger("relay"), obs.Metrics("relay"))

	archiver := batch.NewArchiver(deps.ytdlp, deps.storage, cfg.Batch.ItemFormat, untitled, obs.Logger("batch.archive"))
	batches := batch.NewOrchestrator(deps.store, archiver, cfg.Batch, obs.Logger("batch"), obs.Metrics("batch"))

	jobs := transcode.NewService(deps.ytdlp, deps.ffmpeg, deps.storage, deps.store,
		obs.Logger("transcode"), obs.Metrics("transcode"))

	mediaWorker := worker.NewMediaWorker(worker.Dependencies{
		Extractor:  deps.ytdlp,
		Transcoder: deps.ffmpeg,
		Store:      deps.store,
		Relay:      relayer,
		Batches:    batches,
		Jobs:       jobs,
		Storage:    deps.storage,
	}, worker.LimitsFromConfig(cfg), obs.Logger("worker"), obs.Metrics("worker"))

	var limiter *handler.RateLimiter
	factory := handler.NewFactory(mediaWorker, obs).WithHandlerConfig(cfg.Handler)
	if cfg.RateLimit.Enabled {
		limiter = handler.NewRateLimiter(cfg.RateLimit)
		factory = factory.WithRateLimiter(limiter)
	}

	opts := platforms.Options{
		Locale:  cfg.UI.Locale,
		Limiter: limiter,
	}
	if cfg.Handler.EnableMetrics {
		opts.MetricsHandler = promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{Registry: deps.registry})
	}
	adapter := platforms.NewHTTPAdapter(factory.Create(), opts)

	return &Application{
		server:  adapter.Server(cfg.HTTP),
		batches: batches,
		jobs:    jobs,
		store:   deps.store,
		limiter: limiter,
		logger:  obs.Logger("main"),
		obs:     obs,
	}
}

// startApplication serves until SIGINT or SIGTERM, then drains requests
// and background work.
func startApplication(cfg *config.Config, app *Application) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.store.Run(ctx)
	if app.limiter != nil {
		go app.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "HTTP server listening", observability.Fields{"addr": app.server.Addr})
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error(context.Background(), "HTTP server failed", err, nil)
			log.Fatalf("Failed to start: %v", err)
		}
	case <-ctx.Done():
	}

	shutdown(cfg.HTTP.ShutdownTimeout, app)
}

func shutdown(timeout time.Duration, app *Application) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app.logger.Info(ctx, "Shutting down", nil)

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "HTTP shutdown incomplete", err, nil)
	}
	if err := app.batches.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "Batches did not stop in time", err, nil)
	}
	if err := app.jobs.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "Transcode jobs did not stop in time", err, nil)
	}

	app.logger.Info(ctx, "Shutdown complete", nil)
	app.obs.Close()
}
