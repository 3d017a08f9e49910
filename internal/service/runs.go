package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/spidersync/internal/models"
)

// RunStatus represents the state of a sync run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// maxTrackedRuns bounds the in-memory run history.
const maxTrackedRuns = 200

// RunInfo is the observable state of a run.
type RunInfo struct {
	ID          string     `json:"id"`
	Collection  string     `json:"collection"`
	Job         string     `json:"job"`
	JobKind     string     `json:"job_kind"`
	Timestamp   string     `json:"timestamp"`
	Status      RunStatus  `json:"status"`
	Groups      int        `json:"groups"`
	Result      ApplyStats `json:"result"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run is one notification being processed.
type Run struct {
	RunInfo

	mu sync.RWMutex
}

// RunStore persists run state. *db.Client implements it.
type RunStore interface {
	CreateRun(ctx context.Context, id, collection, job, jobKind string, startedAt time.Time) error
	UpdateRunStatus(ctx context.Context, id, status string, groups int) error
	CompleteRun(ctx context.Context, id string, inserted, updated, deleted int) error
	FailRun(ctx context.Context, id, errMsg string) error
}

// RunManager tracks sync runs in memory and, when a store is set, persists them.
type RunManager struct {
	runs  map[string]*Run
	mu    sync.RWMutex
	store RunStore
}

// NewRunManager creates a run manager. store may be nil.
func NewRunManager(store RunStore) *RunManager {
	return &RunManager{
		runs:  make(map[string]*Run),
		store: store,
	}
}

// Start registers a pending run for n.
func (m *RunManager) Start(ctx context.Context, n *models.Notification) *Run {
	run := &Run{RunInfo: RunInfo{
		ID:         uuid.New().String()[:8], // Short ID for convenience
		Collection: n.Collection,
		Job:        n.Job,
		JobKind:    n.JobKind,
		Timestamp:  n.Timestamp,
		Status:     RunStatusPending,
		StartedAt:  time.Now(),
	}}

	if m.store != nil {
		if err := m.store.CreateRun(ctx, run.ID, run.Collection, run.Job, run.JobKind, run.StartedAt); err != nil {
			slog.Warn("failed to persist run", "run_id", run.ID, "error", err)
		}
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.pruneLocked()
	m.mu.Unlock()

	return run
}

// SetRunning marks the run as applying groups.
func (m *RunManager) SetRunning(ctx context.Context, run *Run, groups int) {
	run.mu.Lock()
	run.Status = RunStatusRunning
	run.Groups = groups
	run.mu.Unlock()

	if m.store != nil {
		if err := m.store.UpdateRunStatus(ctx, run.ID, string(RunStatusRunning), groups); err != nil {
			slog.Warn("failed to set run running", "run_id", run.ID, "error", err)
		}
	}
}

// Complete marks the run as completed with its mutation counts.
func (m *RunManager) Complete(ctx context.Context, run *Run, stats ApplyStats) {
	run.mu.Lock()
	run.Status = RunStatusCompleted
	run.Result = stats
	now := time.Now()
	run.CompletedAt = &now
	run.mu.Unlock()

	if m.store != nil {
		if err := m.store.CompleteRun(ctx, run.ID, stats.Inserted, stats.Updated, stats.Deleted); err != nil {
			slog.Warn("failed to persist run completion", "run_id", run.ID, "error", err)
		}
	}
}

// Fail marks the run as failed.
func (m *RunManager) Fail(ctx context.Context, run *Run, stats ApplyStats, err error) {
	run.mu.Lock()
	run.Status = RunStatusFailed
	run.Result = stats
	run.Error = err.Error()
	now := time.Now()
	run.CompletedAt = &now
	run.mu.Unlock()

	if m.store != nil {
		if dbErr := m.store.FailRun(ctx, run.ID, err.Error()); dbErr != nil {
			slog.Warn("failed to persist run failure", "run_id", run.ID, "error", dbErr)
		}
	}
}

// GetRun retrieves a run by ID.
func (m *RunManager) GetRun(id string) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[id]
}

// ListRuns returns snapshots of all tracked runs, most recent first.
func (m *RunManager) ListRuns() []RunInfo {
	m.mu.RLock()
	runs := make([]RunInfo, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run.Snapshot())
	}
	m.mu.RUnlock()

	slices.SortFunc(runs, func(a, b RunInfo) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs
}

// pruneLocked drops the oldest runs beyond maxTrackedRuns. Caller must hold the write lock.
func (m *RunManager) pruneLocked() {
	for len(m.runs) > maxTrackedRuns {
		var oldest *Run
		for _, run := range m.runs {
			if oldest == nil || run.StartedAt.Before(oldest.StartedAt) {
				oldest = run
			}
		}
		delete(m.runs, oldest.ID)
	}
}

// Snapshot returns a thread-safe copy of run state.
func (r *Run) Snapshot() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.RunInfo
}
