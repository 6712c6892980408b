package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteExecutor runs queries against a local file database, creating and
// seeding the dataset schema on first open. Table names mirror the postgres
// views so the same template SQL works on both backends.
type SQLiteExecutor struct {
	db *sql.DB
}

func NewSQLiteExecutor(ctx context.Context, path string) (*SQLiteExecutor, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := initSQLiteSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLiteExecutor{db: conn}, nil
}

func initSQLiteSchema(ctx context.Context, conn *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS geographical_unit_view (
			geo_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			geo_level_id INTEGER NOT NULL,
			city_id INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS current_indicators_view (
			geo_id INTEGER NOT NULL,
			indicator_name TEXT NOT NULL,
			value REAL NOT NULL,
			year INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_indicators_geo ON current_indicators_view (geo_id, indicator_name);`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return seedSQLite(ctx, conn)
}

func seedSQLite(ctx context.Context, conn *sql.DB) error {
	insertUnit := `INSERT OR IGNORE INTO geographical_unit_view (geo_id, name, geo_level_id, city_id) VALUES (?, ?, ?, ?)`
	insertIndicator := `INSERT OR IGNORE INTO current_indicators_view (geo_id, indicator_name, value, year)
		SELECT ?, ?, ?, ? WHERE NOT EXISTS (
			SELECT 1 FROM current_indicators_view WHERE geo_id = ? AND indicator_name = ? AND year = ?
		)`

	if _, err := conn.ExecContext(ctx, insertUnit, barcelonaGeoID, "Barcelona", 1, 1); err != nil {
		return fmt.Errorf("seed sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, insertIndicator,
		barcelonaGeoID, "population", float64(barcelonaPopulation), seedYear,
		barcelonaGeoID, "population", seedYear); err != nil {
		return fmt.Errorf("seed sqlite: %w", err)
	}
	for _, d := range barcelonaDistricts {
		if _, err := conn.ExecContext(ctx, insertUnit, d.geoID, d.name, 2, 1); err != nil {
			return fmt.Errorf("seed sqlite: %w", err)
		}
		if _, err := conn.ExecContext(ctx, insertIndicator,
			d.geoID, "population", float64(d.population), seedYear,
			d.geoID, "population", seedYear); err != nil {
			return fmt.Errorf("seed sqlite: %w", err)
		}
	}
	return nil
}

func (e *SQLiteExecutor) Execute(ctx context.Context, sqlText string, args ...any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, normalizeSQLiteSyntax(sqlText), args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

func (e *SQLiteExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *SQLiteExecutor) Close() error {
	return e.db.Close()
}

var positionalParam = regexp.MustCompile(`\$(\d+)`)

// normalizeSQLiteSyntax maps the postgres dialect of the template corpus onto
// sqlite: ILIKE does not exist there (plain LIKE is already case-insensitive
// for ASCII), and $N placeholders become ?N ordinals.
func normalizeSQLiteSyntax(sqlText string) string {
	sqlText = strings.ReplaceAll(sqlText, " ILIKE ", " LIKE ")
	return positionalParam.ReplaceAllString(sqlText, "?$1")
}
