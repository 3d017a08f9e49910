package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"duplicate", &surrealdb.QueryError{Message: "Database record `sync_run:a` already exists"}, ErrRunAlreadyExists},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}, ErrTransactionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapQueryError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	other := errors.New("connection reset")
	assert.Same(t, other, wrapQueryError(other))
}
