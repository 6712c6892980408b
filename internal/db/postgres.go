package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExecutor runs queries against the production urban dataset.
type PostgresExecutor struct {
	pool *pgxpool.Pool
}

func NewPostgresExecutor(ctx context.Context, databaseURL string) (*PostgresExecutor, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresExecutor{pool: pool}, nil
}

func (e *PostgresExecutor) Execute(ctx context.Context, sqlText string, args ...any) ([]Row, error) {
	rows, err := e.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

func (e *PostgresExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

func (e *PostgresExecutor) Close() error {
	e.pool.Close()
	return nil
}

// normalizeValue flattens driver-specific numeric wrappers so downstream
// formatting sees plain Go numbers.
func normalizeValue(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		if f, err := n.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
	}
	return v
}
