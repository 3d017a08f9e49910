package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/models"
)

// ErrInvalidNotification is returned for notifications that cannot be processed.
var ErrInvalidNotification = errors.New("invalid notification")

// RunResult summarizes a processed notification.
type RunResult struct {
	RunID  string
	Index  string
	Groups int
	ApplyStats
}

// Processor runs the full pipeline for one notification: fetch sequences,
// plan groups, then assemble and apply them.
type Processor struct {
	fetcher     *SequenceFetcher
	executor    *Executor
	runs        *RunManager
	indexPrefix string
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Index       Index
	Assembler   *Assembler
	Runs        *RunManager
	IndexPrefix string
	Concurrency int
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// NewProcessor creates a processor. A nil Runs gets an in-memory manager.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runs := cfg.Runs
	if runs == nil {
		runs = NewRunManager(nil)
	}
	return &Processor{
		fetcher:     NewSequenceFetcher(cfg.Index, logger),
		executor:    NewExecutor(cfg.Assembler, cfg.Index, cfg.Concurrency, logger),
		runs:        runs,
		indexPrefix: cfg.IndexPrefix,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Runs returns the run manager.
func (p *Processor) Runs() *RunManager {
	return p.runs
}

// Process brings the collection's index up to date with n.
// A full crawl notification drops the index first.
func (p *Processor) Process(ctx context.Context, n *models.Notification) (*RunResult, error) {
	if err := validate(n); err != nil {
		return nil, err
	}

	start := time.Now()
	run := p.runs.Start(ctx, n)
	logger := p.logger.With("run_id", run.ID, "spider", n.Collection, "timestamp", n.Timestamp)
	logger.Info("processing spider", "job", n.Job, "job_kind", n.JobKind, "files", len(n.Files))

	result, err := p.process(ctx, run, n)
	result.RunID = run.ID
	if err != nil {
		p.metrics.RecordError(metrics.OpSyncRun)
		p.runs.Fail(ctx, run, result.ApplyStats, err)
		logger.Error("error processing spider", "error", err)
		return result, err
	}

	p.metrics.RecordTiming(metrics.OpSyncRun, time.Since(start))
	p.runs.Complete(ctx, run, result.ApplyStats)
	logger.Info("finished processing spider",
		"groups", result.Groups,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (p *Processor) process(ctx context.Context, run *Run, n *models.Notification) (*RunResult, error) {
	result := &RunResult{Index: IndexName(p.indexPrefix, n.Collection)}

	seqs, err := p.fetcher.Fetch(ctx, n.Collection, result.Index, n.FullCrawl())
	if err != nil {
		return result, fmt.Errorf("fetch sequences: %w", err)
	}

	groups := Plan(seqs, n)
	result.Groups = len(groups)
	p.runs.SetRunning(ctx, run, result.Groups)

	stats, err := p.executor.Run(ctx, result.Index, n, groups)
	result.ApplyStats = stats
	if err != nil {
		return result, fmt.Errorf("apply groups: %w", err)
	}
	return result, nil
}

// Plan computes the groups n would rebuild without writing anything.
// The index is never dropped, even for full crawls.
func (p *Processor) Plan(ctx context.Context, n *models.Notification) ([]models.FileGroup, error) {
	if err := validate(n); err != nil {
		return nil, err
	}
	seqs, err := p.fetcher.Fetch(ctx, n.Collection, IndexName(p.indexPrefix, n.Collection), false)
	if err != nil {
		return nil, fmt.Errorf("fetch sequences: %w", err)
	}
	return Plan(seqs, n), nil
}

func validate(n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: empty", ErrInvalidNotification)
	}
	if n.Collection == "" {
		return fmt.Errorf("%w: missing spider", ErrInvalidNotification)
	}
	return nil
}
