package ports

import (
	"context"
	"time"

	"WorkflowPulse/internal/domain"
)

// WorkflowRepository persists the latest popularity state per workflow key.
type WorkflowRepository interface {
	// Upsert creates or overwrites the record for the record's key.
	Upsert(ctx context.Context, record domain.WorkflowRecord) error
	// List returns records ordered by descending popularity score.
	List(ctx context.Context, filter domain.RecordFilter) ([]domain.WorkflowRecord, error)
}

// Scheduler controls when collection runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
