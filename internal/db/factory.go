package db

import (
	"context"
	"strings"
)

// NewExecutor picks postgres when a DATABASE_URL is configured, sqlite when a
// local path is configured, and the seeded mock otherwise.
func NewExecutor(ctx context.Context, databaseURL, sqlitePath string) (Executor, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresExecutor(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteExecutor(ctx, sqlitePath)
	}
	return NewMockExecutor(), nil
}
