package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// DefaultRunLimit caps ListRuns when no limit is given.
const DefaultRunLimit = 50

// CreateRun records a pending run.
func (c *Client) CreateRun(ctx context.Context, id, collection, job, jobKind string, startedAt time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("sync_run", $id) SET
			collection = $collection,
			job = $job,
			job_kind = $job_kind,
			status = "pending",
			started_at = $started_at
	`, map[string]any{
		"id":         id,
		"collection": collection,
		"job":        job,
		"job_kind":   jobKind,
		"started_at": startedAt,
	})
	if err != nil {
		return fmt.Errorf("create run: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateRunStatus sets the run status and the number of planned groups.
func (c *Client) UpdateRunStatus(ctx context.Context, id, status string, groups int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("sync_run", $id) SET
			status = $status,
			groups = $groups
	`, map[string]any{"id": id, "status": status, "groups": groups})
	if err != nil {
		return fmt.Errorf("update run status: %w", wrapQueryError(err))
	}
	return nil
}

// CompleteRun marks the run completed with its mutation counts.
func (c *Client) CompleteRun(ctx context.Context, id string, inserted, updated, deleted int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("sync_run", $id) SET
			status = "completed",
			inserted = $inserted,
			updated = $updated,
			deleted = $deleted,
			completed_at = time::now()
	`, map[string]any{
		"id":       id,
		"inserted": inserted,
		"updated":  updated,
		"deleted":  deleted,
	})
	if err != nil {
		return fmt.Errorf("complete run: %w", wrapQueryError(err))
	}
	return nil
}

// FailRun marks the run failed with errMsg.
func (c *Client) FailRun(ctx context.Context, id, errMsg string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("sync_run", $id) SET
			status = "failed",
			error = $error,
			completed_at = time::now()
	`, map[string]any{"id": id, "error": errMsg})
	if err != nil {
		return fmt.Errorf("fail run: %w", wrapQueryError(err))
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if it does not exist.
func (c *Client) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	results, err := surrealdb.Query[[]models.SyncRun](ctx, c.db, `
		SELECT * FROM type::record("sync_run", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &(*results)[0].Result[0], nil
}

// ListRuns returns recorded runs, most recent first.
// collection filters by spider when non-nil.
func (c *Client) ListRuns(ctx context.Context, collection *string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	whereClause := ""
	vars := map[string]any{"limit": limit}
	if collection != nil {
		whereClause = "WHERE collection = $collection"
		vars["collection"] = *collection
	}

	sql := fmt.Sprintf(`
		SELECT * FROM sync_run %s
		ORDER BY started_at DESC
		LIMIT $limit
	`, whereClause)

	results, err := surrealdb.Query[[]models.SyncRun](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.SyncRun{}, nil
	}
	return (*results)[0].Result, nil
}
