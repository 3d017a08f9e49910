package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/raphaelgruber/spidersync/internal/index"
	"github.com/raphaelgruber/spidersync/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the groups assembled and applied at once.
const DefaultConcurrency = 16

// ApplyStats counts the index mutations of a run.
type ApplyStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// Executor drives planned groups through assembly and index application in waves.
type Executor struct {
	assembler   *Assembler
	index       IndexWriter
	concurrency int
	logger      *slog.Logger
}

// NewExecutor creates an executor. Non-positive concurrency uses DefaultConcurrency.
func NewExecutor(assembler *Assembler, idx IndexWriter, concurrency int, logger *slog.Logger) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		assembler:   assembler,
		index:       idx,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Concurrency returns the configured wave size.
func (e *Executor) Concurrency() int {
	return e.concurrency
}

// Run processes groups in plan order, in waves of at most Concurrency groups.
// Each wave runs concurrently and completes as a whole before the next starts.
// The first failing group fails its wave, and the run stops there.
func (e *Executor) Run(ctx context.Context, indexName string, n *models.Notification, groups []models.FileGroup) (ApplyStats, error) {
	var inserted, updated, deleted atomic.Int64
	stats := func() ApplyStats {
		return ApplyStats{
			Inserted: int(inserted.Load()),
			Updated:  int(updated.Load()),
			Deleted:  int(deleted.Load()),
		}
	}

	for start, wave := 0, 0; start < len(groups); start, wave = start+e.concurrency, wave+1 {
		if err := ctx.Err(); err != nil {
			return stats(), err
		}
		end := min(start+e.concurrency, len(groups))

		// Siblings keep running when one fails; writes already sent are not rolled back.
		var g errgroup.Group
		for _, group := range groups[start:end] {
			g.Go(func() error {
				doc, err := e.assembler.Assemble(ctx, n, group)
				if err != nil {
					return err
				}
				kind, err := e.apply(ctx, indexName, n.Job, doc)
				if err != nil {
					return err
				}
				switch kind {
				case mutationInsert:
					inserted.Add(1)
				case mutationUpdate:
					updated.Add(1)
				case mutationDelete:
					deleted.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats(), fmt.Errorf("wave %d: %w", wave, err)
		}
		e.logger.Debug("wave complete", "index", indexName, "wave", wave, "groups", end-start)
	}
	return stats(), nil
}

type mutation int

const (
	mutationInsert mutation = iota + 1
	mutationUpdate
	mutationDelete
)

// apply writes one document: delete by id, partial update without payload,
// or full insert through the attachment pipeline.
func (e *Executor) apply(ctx context.Context, indexName, job string, doc *models.Document) (mutation, error) {
	if doc.Deleted {
		if err := e.index.DeleteDoc(ctx, indexName, doc.ID); err != nil {
			return 0, fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
		e.logger.Info("deleted document", "index", indexName, "id", doc.ID)
		return mutationDelete, nil
	}

	doc.Source = job
	if !doc.HasPayload() {
		if err := e.index.UpdateDoc(ctx, indexName, doc.ID, doc.PatchFields()); err != nil {
			return 0, fmt.Errorf("update document %s: %w", doc.ID, err)
		}
		e.logger.Info("updated document", "index", indexName, "id", doc.ID)
		return mutationUpdate, nil
	}

	if err := e.index.PutDoc(ctx, indexName, doc.ID, doc, index.AttachmentPipeline); err != nil {
		return 0, fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	e.logger.Info("inserted document", "index", indexName, "id", doc.ID, "attachment_length", len(doc.Payload))
	return mutationInsert, nil
}
