package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"energypulse/internal/config"
	"energypulse/internal/dataprocessing"
	"energypulse/internal/datasets"
	apierrors "energypulse/internal/errors"
	"energypulse/internal/infrastructure"
	customMiddleware "energypulse/internal/middleware"
	"energypulse/internal/operations"
	"energypulse/internal/services"
	handlers "energypulse/internal/transport/http"
)

// compressionLevel is the gzip level for dataset responses
const compressionLevel = 5

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Registry      *datasets.Registry
	JobQueue      *operations.JobQueue
	Services      *ServiceContainer

	errorHandler *apierrors.ErrorHandler
	cancel       context.CancelFunc
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Store    *services.DatasetStore
	Import   *services.ImportService
	Analysis *services.AnalysisService
	Health   *services.HealthService
}

// NewApplication loads the configuration at configPath (or the default
// locations when empty), sets up the global logger and builds the
// application
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		errorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the import pipeline, the job queue and the
// services on top of them
func (a *Application) initializeServices() error {
	loc, err := a.Config.Location()
	if err != nil {
		return fmt.Errorf("failed to load time zone: %w", err)
	}
	mode, err := dataprocessing.ParseMode(a.Config.Processing.Mode)
	if err != nil {
		return err
	}

	a.Registry = datasets.Default()

	processor := dataprocessing.NewProcessor(a.Registry,
		dataprocessing.WithWorkers(a.Config.Processing.Workers),
		dataprocessing.WithNormalizer(dataprocessing.NewNormalizer(mode, loc)),
		dataprocessing.WithLogger(a.Logger),
		dataprocessing.WithRecorder(a.Metrics),
	)

	store := services.NewDatasetStore(a.Config.Jobs.ResultTTL, a.Logger)
	runner := services.NewImportRunner(processor, store, a.Logger)

	a.JobQueue = operations.NewJobQueue(operations.NewMemoryJobStore(), runner.Run,
		operations.WithWorkers(a.Config.Jobs.Workers),
		operations.WithQueueSize(a.Config.Jobs.QueueSize),
		operations.WithResultTTL(a.Config.Jobs.ResultTTL),
		operations.WithQueuedGauge(a.Metrics.JobsQueued),
		operations.WithQueueLogger(a.Logger),
	)

	a.Services = &ServiceContainer{
		Store:    store,
		Import:   services.NewImportService(a.Registry, a.JobQueue, a.Paths.UploadsDir, a.Config.Processing.MaxUploadBytes, a.Logger),
		Analysis: services.NewAnalysisService(store, a.Config.Processing.AnomalySigma, a.Logger),
		Health:   services.NewHealthService(a.Paths, a.Registry, store, a.Logger),
	}

	a.Logger.Info("Services initialized",
		slog.String("mode", string(mode)),
		slog.String("timezone", loc.String()),
		slog.Int("processing_workers", a.Config.Processing.Workers),
		slog.Int("job_workers", a.Config.Jobs.Workers),
		slog.Int("dataset_types", len(a.Registry.Types())))

	return nil
}

// setupRouter configures the HTTP router with all routes.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.errorHandler,
			a.Logger,
		).Handler)
	}
	r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes mounts the /api tree
func (a *Application) setupAPIRoutes(r chi.Router) {
	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	var allowedOrigins []string
	if a.Config.Security.EnableCORS {
		allowedOrigins = a.Config.Security.AllowedOrigins
	}

	datasetHandler := handlers.NewDatasetHandler(
		a.Registry,
		a.Services.Import,
		a.Services.Analysis,
		a.Config.Processing.MaxUploadBytes,
		a.errorHandler,
		a.Logger,
	)
	jobsHandler := handlers.NewJobsHandler(a.Services.Import, allowedOrigins, a.errorHandler, a.Logger)
	analysisHandler := handlers.NewAnalysisHandler(a.Services.Analysis, a.errorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.With(customMiddleware.Compress(compressionLevel)).Mount("/datasets", datasetHandler.Routes())
		r.Mount("/jobs", jobsHandler.Routes())
		r.Mount("/analysis", analysisHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Start starts the job queue and the HTTP server. It blocks until the
// server stops.
func (a *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.JobQueue.Start(ctx)

	a.Logger.Info("Starting HTTP server",
		slog.String("addr", a.Server.Addr),
		slog.String("version", a.Config.Telemetry.ServiceVersion))

	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop shuts the server down, drains the job queue and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Info("Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job queue shutdown: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("log file close: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.Info("Application stopped")
	return nil
}

// Run starts the application and stops it on SIGINT or SIGTERM
func (a *Application) Run() error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			_ = a.Stop(context.Background())
			return err
		}
	case sig := <-quit:
		a.Logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	}

	return a.Stop(context.Background())
}
