package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/config"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/infrastructure/discourse"
	"WorkflowPulse/internal/infrastructure/httpjson"
	"WorkflowPulse/internal/infrastructure/scheduler"
	"WorkflowPulse/internal/infrastructure/storage"
	"WorkflowPulse/internal/infrastructure/trends"
	"WorkflowPulse/internal/infrastructure/youtube"
	"WorkflowPulse/internal/logging"
	"WorkflowPulse/internal/transport/httpapi"
	"WorkflowPulse/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *sql.DB
	repo         *storage.SQLRepository
	orchestrator *usecase.Orchestrator
	dispatcher   *usecase.Dispatcher
}

// Options overrides pieces of the default wiring.
type Options struct {
	Logger     *slog.Logger
	Collectors []collector.Collector
	Now        func() time.Time
}

// New opens storage and builds every component from cfg.
func New(cfg config.Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(cfg.Logging.Level)
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewSQLRepository(db, dialect)

	collectors := opts.Collectors
	if collectors == nil {
		collectors = defaultCollectors(cfg, logger)
	}

	countries := make([]domain.Country, 0, len(cfg.Collection.Countries))
	for _, code := range cfg.Collection.Countries {
		countries = append(countries, domain.NormalizeCountry(code))
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Registry:   collector.NewRegistry(collectors...),
		Reconciler: usecase.NewReconciler(repo, opts.Now),
		Countries:  countries,
		Logger:     logger.With("component", "orchestrator"),
	})
	dispatcher := usecase.NewDispatcher(orchestrator.RunAndStore, 0, logger.With("component", "dispatcher"))

	if cfg.YouTube.APIKey == "" {
		logger.Warn("youtube api key is not configured, video collection will report a failure per run")
	}

	return &Application{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		repo:         repo,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
	}, nil
}

func defaultCollectors(cfg config.Config, logger *slog.Logger) []collector.Collector {
	regions := make(map[domain.Country]string, len(cfg.Trends.Regions))
	for country, geo := range cfg.Trends.Regions {
		regions[domain.NormalizeCountry(country)] = geo
	}
	if len(regions) == 0 {
		regions = nil
	}

	return []collector.Collector{
		youtube.NewCollector(youtube.Config{
			APIKey:     cfg.YouTube.APIKey,
			BaseURL:    cfg.YouTube.BaseURL,
			Keywords:   cfg.YouTube.Keywords,
			MaxResults: cfg.YouTube.MaxResults,
			Pause:      cfg.YouTube.Pause,
		}, httpjson.NewClient(), logger.With("component", "collector.video")),
		discourse.NewCollector(discourse.Config{
			BaseURL:   cfg.Forum.BaseURL,
			PageCount: cfg.Forum.Pages,
			TopicCap:  cfg.Forum.TopicCap,
			Pause:     cfg.Forum.Pause,
		}, httpjson.NewClient(), logger.With("component", "collector.forum")),
		trends.NewCollector(trends.Config{
			BaseURL:       cfg.Trends.BaseURL,
			Keywords:      cfg.Trends.Keywords,
			Timeframe:     cfg.Trends.Timeframe,
			Language:      cfg.Trends.Language,
			TZOffset:      cfg.Trends.TZOffset,
			Lookback:      cfg.Trends.Lookback,
			Regions:       regions,
			DefaultRegion: cfg.Trends.DefaultRegion,
			Pause:         cfg.Trends.Pause,
		}, logger.With("component", "collector.trends")),
	}
}

// Migrate creates the schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.repo.Migrate(ctx)
}

// Collect performs one synchronous collection run and stores the result.
func (a *Application) Collect(ctx context.Context, req usecase.RunRequest) (usecase.RunReport, error) {
	if err := a.Migrate(ctx); err != nil {
		return usecase.RunReport{}, err
	}
	return a.orchestrator.RunAndStore(ctx, req)
}

// Handler exposes the HTTP API of the application.
func (a *Application) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Records:   a.repo,
		Runs:      a.dispatcher,
		Secret:    a.cfg.Security.TriggerSecret,
		Countries: a.orchestrator.Countries(),
		Logger:    a.logger.With("component", "httpapi"),
	})
}

// Serve runs the HTTP server, and the scheduler when enabled, until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := a.Migrate(ctx); err != nil {
		return err
	}

	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.RunOnStart)
		sched = usecase.NewScheduler(driver, a.orchestrator, a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.logger.Error("scheduler shutdown", "error", err)
		}
	}
	a.logger.Info("http server stopped")
	return serveErr
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
