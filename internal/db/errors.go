package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for ledger operations.
var (
	// ErrRunAlreadyExists indicates a run with the same ID was already recorded.
	ErrRunAlreadyExists = errors.New("run already exists")

	// ErrTransactionConflict indicates concurrent writes to the same run record.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested run does not exist.
	ErrNotFound = errors.New("run not found")
)

// wrapQueryError maps known SurrealDB query failures onto the sentinels above.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %s", ErrRunAlreadyExists, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
