// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/jobrunner/meridian/internal/adapters/http"
	"github.com/jobrunner/meridian/internal/adapters/metrics"
	"github.com/jobrunner/meridian/internal/adapters/shapefile"
	"github.com/jobrunner/meridian/internal/adapters/shapestore"
	"github.com/jobrunner/meridian/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/meridian/internal/adapters/tls"
	"github.com/jobrunner/meridian/internal/adapters/watcher"
	"github.com/jobrunner/meridian/internal/application"
	"github.com/jobrunner/meridian/internal/config"
	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Storage        output.ObjectStorage
	Store          *shapestore.Store
	Registry       *application.LayerRegistry
	QueryService   *application.QueryService
	GeodesyService *application.GeodesyService
	HealthService  *application.HealthService
	Emulator       *application.EmulatorService
	SyncService    *application.SyncService
	HTTPServer     *httpAdapter.Server
	TLSServer      *tlsAdapter.Server
	Watcher        *watcher.Watcher
	Metrics        *metrics.Collector
	MetricsServer  *http.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var collector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("meridian")
		collector = app.Metrics
	}

	store, err := initStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = storage.NewInstrumented(store, collector)

	app.Store, err = shapestore.Open(ctx, cfg.Shapes.IndexPath, cfg.Shapes.CacheEntries, logger)
	if err != nil {
		return nil, fmt.Errorf("opening shape index: %w", err)
	}

	reader := shapefile.NewReader(shapefile.NewTransformer(), domain.SRIDWGS84, logger)
	app.Registry = application.NewLayerRegistry(
		reader,
		app.Store,
		app.Storage,
		collector,
		logger,
		cfg.Storage.LocalPath,
	)

	app.QueryService = application.NewQueryService(
		app.Registry,
		app.Store,
		collector,
		logger,
		application.QueryServiceConfig{MaxFeatures: cfg.Shapes.MaxFeatures},
	)

	app.GeodesyService, err = application.NewGeodesyService(collector, logger, application.GeodesyConfig{
		Ellipsoid:      cfg.Geodesy.Ellipsoid,
		Method:         cfg.Geodesy.Method,
		MatrixWorkers:  cfg.Geodesy.MatrixWorkers,
		MaxMatrixCells: cfg.Geodesy.MaxMatrixCells,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing geodesy: %w", err)
	}

	app.HealthService = application.NewHealthService(app.Registry, cfg.Shapes.MinLayers)

	if cfg.Emulator.Enabled {
		start, err := cfg.Emulator.StartPosition()
		if err != nil {
			return nil, fmt.Errorf("emulator start position: %w", err)
		}
		app.Emulator, err = application.NewEmulatorService(collector, logger, application.EmulatorConfig{
			Start:    start,
			Bearing:  domain.Azimuth(cfg.Emulator.Bearing),
			Speed:    domain.NewSpeed(cfg.Emulator.SpeedKnots, domain.Knots),
			Interval: cfg.Emulator.Interval,
			Buffer:   cfg.Emulator.Buffer,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing emulator: %w", err)
		}
		app.HealthService.WithEmulator(app.Emulator)
	}

	if cfg.Sync.Interval > 0 && cfg.Storage.Type != "local" {
		app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger)
	}

	svc := httpAdapter.Services{
		Geodesy: app.GeodesyService,
		Query:   app.QueryService,
		Layers:  app.Registry,
		Health:  app.HealthService,
	}
	// Interface fields stay nil for disabled components.
	if app.Emulator != nil {
		svc.Emulator = app.Emulator
	}
	if app.SyncService != nil {
		svc.Sync = app.SyncService
	}

	metricsPath := ""
	if app.Metrics != nil {
		svc.Metrics = app.Metrics
		if cfg.Metrics.Port == 0 {
			metricsPath = cfg.Metrics.Path
		} else {
			app.MetricsServer = newMetricsServer(cfg, app.Metrics)
		}
	}

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		svc,
		logger,
		httpAdapter.WithMetricsPath(metricsPath),
		httpAdapter.WithDefaultUnit(cfg.Geodesy.Unit),
	)

	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Hot-reload of local shapefiles.
	if cfg.Storage.Type == "local" && cfg.Shapes.Watch {
		w, err := watcher.New(
			watcher.Config{Paths: []string{cfg.Storage.LocalPath}},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

func newMetricsServer(cfg *config.Config, collector *metrics.Collector) *http.Server {
	r := mux.NewRouter()
	r.Handle(cfg.Metrics.Path, collector.Handler()).Methods(http.MethodGet)
	return &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Metrics.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start loads the layers and serves until a listener fails.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadFromStorage(ctx); err != nil {
		a.Logger.Warn("failed to load layers", "error", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}

	if a.Emulator != nil {
		if err := a.Emulator.Start(ctx); err != nil {
			return fmt.Errorf("starting emulator: %w", err)
		}
	}

	// The first listener to exit takes the others down with it.
	serving, stopServing := context.WithCancel(ctx)
	defer stopServing()
	g, gctx := errgroup.WithContext(serving)

	if a.MetricsServer != nil {
		g.Go(func() error {
			defer stopServing()
			a.Logger.Info("starting metrics server", "address", a.MetricsServer.Addr)
			if err := a.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopServing()
		var err error
		if a.TLSServer != nil {
			if err = a.TLSServer.ManageCertificates(gctx); err != nil {
				return fmt.Errorf("obtaining certificates: %w", err)
			}
			err = a.TLSServer.ListenAndServe(a.Config.Server.Address())
		} else {
			err = a.HTTPServer.Start()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := errors.Join(a.stopListeners(shutdownCtx)...); err != nil {
			a.Logger.Warn("stopping listeners", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// stopListeners shuts down the metrics and API listeners. It is safe to
// call more than once.
func (a *App) stopListeners(ctx context.Context) []error {
	var errs []error

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("TLS server: %w", err))
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server: %w", err))
	}
	return errs
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.SyncService != nil {
		a.SyncService.Stop()
	}
	if a.Emulator != nil {
		a.Emulator.Stop()
	}

	errs := a.stopListeners(ctx)

	layers, _ := a.Registry.ListLayers(ctx)
	for _, l := range layers {
		if err := a.Registry.UnloadLayer(ctx, l.ID); err != nil {
			a.Logger.Error("failed to unload layer", "layer", l.ID, "error", err)
		}
	}

	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("shape index: %w", err))
	}

	return errors.Join(errs...)
}

// handleFileEvent handles file system events for hot-reload.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Registry.Reload(ctx, event.Path)
	case watcher.OpDelete:
		return a.Registry.UnloadPath(ctx, event.Path)
	}

	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (output.ObjectStorage, error) {
	retry := storage.RetryConfig{
		MaxRetries:      cfg.Retry.Attempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxElapsedTime:  cfg.Retry.MaxElapsed,
	}

	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Retry:           retry,
		}, logger)

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
			Retry:            retry,
		}, logger)

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
			Retry:     retry,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
