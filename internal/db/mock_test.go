package db

import (
	"context"
	"strings"
	"testing"
)

func TestMockExecutor_DistrictLookup(t *testing.T) {
	e := NewMockExecutor()

	rows, err := e.Execute(context.Background(),
		`SELECT g.name, i.value FROM geographical_unit_view g
		 JOIN current_indicators_view i ON g.geo_id = i.geo_id
		 WHERE g.geo_level_id = 2 AND g.city_id = 1
		   AND lower(g.name) = lower($1)
		   AND i.indicator_name ILIKE '%population%'
		 ORDER BY i.year DESC LIMIT 1`,
		"Eixample")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Values[0] != "Eixample" {
		t.Fatalf("name = %v, want Eixample", rows[0].Values[0])
	}
	if v := rows[0].Values[1].(float64); v < 50_000 || v > 400_000 {
		t.Fatalf("district population %v outside plausible band", v)
	}
}

func TestMockExecutor_UnknownDistrictReturnsNoRows(t *testing.T) {
	e := NewMockExecutor()

	rows, err := e.Execute(context.Background(),
		`SELECT g.name, i.value FROM geographical_unit_view g WHERE lower(g.name) = lower($1)`,
		"Atlantis")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0 for unknown district", len(rows))
	}
}

func TestMockExecutor_CountAndRanking(t *testing.T) {
	e := NewMockExecutor()
	ctx := context.Background()

	rows, err := e.Execute(ctx, `SELECT COUNT(*) AS district_count FROM geographical_unit_view WHERE geo_level_id = 2 AND city_id = 1`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rows[0].Values[0].(int64) != 10 {
		t.Fatalf("district count = %v, want 10", rows[0].Values[0])
	}

	rows, err = e.Execute(ctx, `SELECT g.name, i.value FROM geographical_unit_view g
		JOIN current_indicators_view i ON g.geo_id = i.geo_id
		WHERE g.geo_level_id = 2 AND g.city_id = 1 AND i.indicator_name ILIKE '%population%'
		ORDER BY i.value DESC`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("ranking rows = %d, want 10", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Values[1].(float64) > rows[i-1].Values[1].(float64) {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
	if rows[0].Values[0] != "Eixample" {
		t.Fatalf("largest district = %v, want Eixample", rows[0].Values[0])
	}
}

func TestMockExecutor_RecordsStatements(t *testing.T) {
	e := NewMockExecutor()
	_, _ = e.Execute(context.Background(), "SELECT COUNT(*) FROM geographical_unit_view")

	stmts := e.Statements()
	if len(stmts) != 1 || !strings.Contains(stmts[0], "COUNT(*)") {
		t.Fatalf("Statements() = %v", stmts)
	}
}

func TestNewExecutor_DefaultsToMock(t *testing.T) {
	e, err := NewExecutor(context.Background(), "", "")
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if _, ok := e.(*MockExecutor); !ok {
		t.Fatalf("NewExecutor() = %T, want *MockExecutor", e)
	}
}
