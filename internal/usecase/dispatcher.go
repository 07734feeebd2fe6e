package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownRun is returned for run ids the dispatcher does not track.
var ErrUnknownRun = errors.New("unknown run")

const defaultTaskHistory = 64

// TaskStatus is the lifecycle state of a dispatched run.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// RunFunc executes one collection run.
type RunFunc func(ctx context.Context, req RunRequest) (RunReport, error)

// Task is a snapshot of a dispatched run.
type Task struct {
	ID         string     `json:"run_id"`
	Request    RunRequest `json:"request"`
	Status     TaskStatus `json:"status"`
	Report     *RunReport `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type task struct {
	Task
	seq  uint64
	done chan struct{}
}

// Dispatcher runs collections in the background and keeps their handles.
// Started runs cannot be cancelled; in-flight runs are lost on shutdown.
type Dispatcher struct {
	run     RunFunc
	logger  *slog.Logger
	history int

	mu    sync.Mutex
	seq   uint64
	tasks map[string]*task
}

// NewDispatcher wraps run; history bounds how many finished tasks are kept.
func NewDispatcher(run RunFunc, history int, logger *slog.Logger) *Dispatcher {
	if history <= 0 {
		history = defaultTaskHistory
	}
	return &Dispatcher{
		run:     run,
		logger:  logger,
		history: history,
		tasks:   map[string]*task{},
	}
}

// Dispatch starts req on its own goroutine detached from ctx cancellation
// and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, req RunRequest) Task {
	t := &task{
		Task: Task{
			ID:        uuid.NewString(),
			Request:   req,
			Status:    TaskRunning,
			StartedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	d.mu.Lock()
	d.seq++
	t.seq = d.seq
	d.tasks[t.ID] = t
	d.pruneLocked()
	snapshot := t.Task
	d.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	go d.execute(runCtx, t)

	return snapshot
}

func (d *Dispatcher) execute(ctx context.Context, t *task) {
	defer close(t.done)

	report, err := d.run(ctx, t.Request)
	report.Observations = nil

	finished := time.Now().UTC()
	d.mu.Lock()
	t.Report = &report
	t.FinishedAt = &finished
	if err != nil {
		t.Status = TaskFailed
		t.Error = err.Error()
	} else {
		t.Status = TaskSucceeded
	}
	d.mu.Unlock()

	if d.logger == nil {
		return
	}
	if err != nil {
		d.logger.Error("background run failed", "run_id", t.ID, "error", err)
		return
	}
	d.logger.Info("background run finished", "run_id", t.ID, "stored", report.Stored, "failures", report.Failures)
}

// Status returns the current snapshot of a run.
func (d *Dispatcher) Status(id string) (Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tasks[id]
	if !ok {
		return Task{}, ErrUnknownRun
	}
	return t.Task, nil
}

// Wait blocks until the run finishes or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context, id string) (Task, error) {
	d.mu.Lock()
	t, ok := d.tasks[id]
	d.mu.Unlock()
	if !ok {
		return Task{}, ErrUnknownRun
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return d.Status(id)
	}
	return d.Status(id)
}

// pruneLocked drops the oldest finished tasks beyond the history bound.
func (d *Dispatcher) pruneLocked() {
	if len(d.tasks) <= d.history {
		return
	}

	finished := make([]*task, 0, len(d.tasks))
	for _, t := range d.tasks {
		if t.Status != TaskRunning {
			finished = append(finished, t)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].seq < finished[j].seq
	})

	for _, t := range finished {
		if len(d.tasks) <= d.history {
			return
		}
		delete(d.tasks, t.ID)
	}
}
