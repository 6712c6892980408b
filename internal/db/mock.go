package db

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockExecutor serves the seed corpus without any database, recognizing the
// query shapes the template library produces. Unrecognized statements return
// no rows. It records every executed statement so tests can assert what did
// (or did not) reach the database.
type MockExecutor struct {
	mu         sync.Mutex
	statements []string
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (e *MockExecutor) Execute(_ context.Context, sqlText string, args ...any) ([]Row, error) {
	e.mu.Lock()
	e.statements = append(e.statements, sqlText)
	e.mu.Unlock()

	q := strings.ToLower(sqlText)
	switch {
	case strings.Contains(q, "count(*)"):
		return []Row{{
			Columns: []string{"district_count"},
			Values:  []any{int64(len(barcelonaDistricts))},
		}}, nil

	case strings.Contains(q, "geo_level_id = 1"):
		return []Row{{
			Columns: []string{"name", "value"},
			Values:  []any{"Barcelona", float64(barcelonaPopulation)},
		}}, nil

	case strings.Contains(q, "lower(g.name) = lower($1)") && len(args) == 1:
		want := strings.ToLower(strings.TrimSpace(asString(args[0])))
		for _, d := range barcelonaDistricts {
			if strings.ToLower(d.name) == want {
				return []Row{{
					Columns: []string{"name", "value"},
					Values:  []any{d.name, float64(d.population)},
				}}, nil
			}
		}
		return nil, nil

	case strings.Contains(q, "order by i.value desc"):
		ranked := make([]districtSeed, len(barcelonaDistricts))
		copy(ranked, barcelonaDistricts)
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].population > ranked[j].population })
		out := make([]Row, len(ranked))
		for i, d := range ranked {
			out[i] = Row{
				Columns: []string{"name", "value"},
				Values:  []any{d.name, float64(d.population)},
			}
		}
		return out, nil
	}
	return nil, nil
}

func (e *MockExecutor) Ping(context.Context) error { return nil }

func (e *MockExecutor) Close() error { return nil }

// Statements returns a copy of everything executed so far.
func (e *MockExecutor) Statements() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.statements))
	copy(out, e.statements)
	return out
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
