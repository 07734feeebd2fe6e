package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/ports"
)

// Reconciler merges observations into the repository by workflow key.
//
// Records are written one by one without a surrounding transaction, so a
// storage fault mid-batch leaves earlier records applied. Concurrent runs are
// not coordinated either: the last writer wins per record.
type Reconciler struct {
	repo ports.WorkflowRepository
	now  func() time.Time
}

// NewReconciler wires the repository; now defaults to time.Now.
func NewReconciler(repo ports.WorkflowRepository, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{repo: repo, now: now}
}

// Upsert writes the batch and returns the number of records written.
// Duplicate keys inside the batch collapse to the last observation.
func (r *Reconciler) Upsert(ctx context.Context, observations []domain.Observation) (int, error) {
	if r.repo == nil {
		return 0, fmt.Errorf("repository is not configured")
	}

	order := make([]domain.Key, 0, len(observations))
	latest := make(map[domain.Key]domain.Observation, len(observations))
	for _, obs := range observations {
		key := obs.Key()
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = obs
	}

	seen := r.now().UTC()
	written := 0
	for _, key := range order {
		record, err := toRecord(latest[key], seen)
		if err != nil {
			return written, err
		}
		if err := r.repo.Upsert(ctx, record); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

func toRecord(obs domain.Observation, seen time.Time) (domain.WorkflowRecord, error) {
	metrics := json.RawMessage(`{}`)
	if obs.Metrics != nil {
		raw, err := json.Marshal(obs.Metrics)
		if err != nil {
			return domain.WorkflowRecord{}, fmt.Errorf("marshal metrics for %q: %w", obs.Workflow, err)
		}
		metrics = raw
	}

	return domain.WorkflowRecord{
		Workflow:          obs.Workflow,
		Platform:          obs.Platform,
		Country:           obs.Country,
		SourceURL:         obs.SourceURL,
		PopularityMetrics: metrics,
		PopularityScore:   obs.Score,
		LastSeen:          seen,
	}, nil
}
