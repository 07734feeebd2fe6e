package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WorkflowPulse/internal/domain"
)

// ErrNotRegistered is returned when no collector serves a platform.
var ErrNotRegistered = errors.New("collector is not registered")

// Request carries the parameters of one collection call.
type Request struct {
	Country  domain.Country
	Keywords []string
}

// Collector gathers observations for one platform.
// Failures are reported as items of the returned slice, never as a panic.
type Collector interface {
	Platform() domain.Platform
	Collect(ctx context.Context, req Request) []domain.Result
}

// Registry keeps a mapping from platforms to their collectors.
type Registry struct {
	collectors map[domain.Platform]Collector
}

// NewRegistry builds a registry from the provided collectors.
func NewRegistry(collectors ...Collector) *Registry {
	r := &Registry{collectors: map[domain.Platform]Collector{}}
	for _, c := range collectors {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[domain.Platform]Collector{}
	}
	r.collectors[c.Platform()] = c
}

// Resolve returns the collector for a platform.
func (r *Registry) Resolve(platform domain.Platform) (Collector, error) {
	if c, ok := r.collectors[platform]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", platform, ErrNotRegistered)
}

// Platforms returns the registered platforms in canonical order.
func (r *Registry) Platforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.Platforms() {
		if _, ok := r.collectors[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Pause sleeps for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
