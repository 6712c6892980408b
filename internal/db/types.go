// Package db provides the database collaborator that executes SQL for the
// question pipeline, with interchangeable postgres, sqlite, and mock
// backends.
package db

import "context"

// Row is one result row with column names preserved in select order.
type Row struct {
	Columns []string `json:"columns"`
	Values  []any    `json:"values"`
}

// Executor runs SQL against the urban dataset.
type Executor interface {
	Execute(ctx context.Context, sqlText string, args ...any) ([]Row, error)
	Ping(ctx context.Context) error
	Close() error
}
