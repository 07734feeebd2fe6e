package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"WorkflowPulse/internal/collector"
	"WorkflowPulse/internal/domain"
)

// DefaultCountries is the target set of a run that names none.
var DefaultCountries = []domain.Country{domain.CountryUS, domain.CountryIN}

// RunRequest selects what a collection run covers. Empty slices mean all.
type RunRequest struct {
	Countries []domain.Country  `json:"countries"`
	Platforms []domain.Platform `json:"platforms"`
}

// RunReport summarizes one collection run.
type RunReport struct {
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
	Collected    int                     `json:"collected"`
	Failures     int                     `json:"failures"`
	Stored       int                     `json:"stored"`
	PerPlatform  map[domain.Platform]int `json:"per_platform"`
	Observations []domain.Observation    `json:"-"`
}

// OrchestratorDeps wires collectors and reconciliation into the orchestrator.
type OrchestratorDeps struct {
	Registry   *collector.Registry
	Reconciler *Reconciler
	Countries  []domain.Country
	Logger     *slog.Logger
}

// Orchestrator runs every collector for every country and aggregates results.
type Orchestrator struct {
	registry   *collector.Registry
	reconciler *Reconciler
	countries  []domain.Country
	logger     *slog.Logger
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	countries := deps.Countries
	if len(countries) == 0 {
		countries = DefaultCountries
	}
	registry := deps.Registry
	if registry == nil {
		registry = collector.NewRegistry()
	}
	return &Orchestrator{
		registry:   registry,
		reconciler: deps.Reconciler,
		countries:  countries,
		logger:     deps.Logger,
	}
}

// Countries returns the configured target set.
func (o *Orchestrator) Countries() []domain.Country {
	return append([]domain.Country(nil), o.countries...)
}

// Run collects sequentially, country by country. Failed items are logged and
// dropped; a collector that fails entirely does not stop the others.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) RunReport {
	report := RunReport{
		StartedAt:   time.Now().UTC(),
		PerPlatform: map[domain.Platform]int{},
	}

	countries := req.Countries
	if len(countries) == 0 {
		countries = o.countries
	}
	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = o.registry.Platforms()
	}

	for _, country := range countries {
		for _, platform := range platforms {
			c, err := o.registry.Resolve(platform)
			if err != nil {
				o.warn("collector unavailable", "platform", platform, "country", country, "error", err)
				report.Failures++
				continue
			}

			observations, failures := domain.Split(c.Collect(ctx, collector.Request{Country: country}))
			for _, f := range failures {
				o.warn("collection item dropped", "platform", f.Platform, "country", f.Country, "stage", f.Stage, "key", f.Key, "error", f.Err)
			}
			o.info("collector finished", "platform", platform, "country", country, "observations", len(observations), "failures", len(failures))

			report.Observations = append(report.Observations, observations...)
			report.PerPlatform[platform] += len(observations)
			report.Failures += len(failures)
		}
	}

	report.Collected = len(report.Observations)
	report.FinishedAt = time.Now().UTC()
	return report
}

// RunAndStore collects and reconciles the batch. Storage errors are returned;
// collection failures never are.
func (o *Orchestrator) RunAndStore(ctx context.Context, req RunRequest) (RunReport, error) {
	report := o.Run(ctx, req)
	if o.reconciler == nil {
		return report, fmt.Errorf("reconciler is not configured")
	}

	stored, err := o.reconciler.Upsert(ctx, report.Observations)
	report.Stored = stored
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		return report, fmt.Errorf("store observations: %w", err)
	}

	o.info("run stored", "collected", report.Collected, "stored", stored, "failures", report.Failures)
	return report, nil
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
