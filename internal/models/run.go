package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SyncRun is a persisted record of one notification being processed.
type SyncRun struct {
	ID          surrealmodels.RecordID `json:"id"`
	Collection  string                 `json:"collection"`
	Job         string                 `json:"job"`
	JobKind     string                 `json:"job_kind"`
	Status      string                 `json:"status"`
	Groups      int                    `json:"groups"`
	Inserted    int                    `json:"inserted"`
	Updated     int                    `json:"updated"`
	Deleted     int                    `json:"deleted"`
	Error       *string                `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}
