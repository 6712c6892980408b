package precompiled

import (
	"errors"
	"strings"
	"testing"

	"github.com/urbanatlas/askcity/internal/db"
)

func TestFormatAnswer_SingleValue(t *testing.T) {
	lib := loadTestLibrary(t)
	m, ok := lib.Match("population of barcelona")
	if !ok {
		t.Fatalf("Match() failed")
	}

	got, err := FormatAnswer(m, []db.Row{
		{Columns: []string{"name", "value"}, Values: []any{"Barcelona", float64(1_620_343)}},
	})
	if err != nil {
		t.Fatalf("FormatAnswer() error = %v", err)
	}
	if got != "The population of Barcelona is 1,620,343 inhabitants." {
		t.Fatalf("FormatAnswer() = %q", got)
	}
}

func TestFormatAnswer_NamedValue(t *testing.T) {
	lib := loadTestLibrary(t)
	m, ok := lib.Match("¿Cuál es la población de Eixample?")
	if !ok {
		t.Fatalf("Match() failed")
	}

	got, err := FormatAnswer(m, []db.Row{
		{Columns: []string{"name", "value"}, Values: []any{"Eixample", float64(266_416)}},
	})
	if err != nil {
		t.Fatalf("FormatAnswer() error = %v", err)
	}
	if got != "The population of Eixample is 266,416 inhabitants." {
		t.Fatalf("FormatAnswer() = %q", got)
	}
}

func TestFormatAnswer_Count(t *testing.T) {
	lib := loadTestLibrary(t)
	m, ok := lib.Match("how many districts in barcelona")
	if !ok {
		t.Fatalf("Match() failed")
	}

	got, err := FormatAnswer(m, []db.Row{
		{Columns: []string{"district_count"}, Values: []any{int64(10)}},
	})
	if err != nil {
		t.Fatalf("FormatAnswer() error = %v", err)
	}
	if got != "Barcelona has 10 districts." {
		t.Fatalf("FormatAnswer() = %q", got)
	}
}

func TestFormatAnswer_RankingLimitsToTen(t *testing.T) {
	lib := loadTestLibrary(t)
	m, ok := lib.Match("districts by population")
	if !ok {
		t.Fatalf("Match() failed")
	}

	rows := make([]db.Row, 12)
	for i := range rows {
		rows[i] = db.Row{
			Columns: []string{"name", "value"},
			Values:  []any{"Area " + string(rune('A'+i)), float64(100_000 - i*1000)},
		}
	}

	got, err := FormatAnswer(m, rows)
	if err != nil {
		t.Fatalf("FormatAnswer() error = %v", err)
	}
	if !strings.HasPrefix(got, "Here are the Barcelona districts by population:") {
		t.Fatalf("missing header: %q", got)
	}
	if n := strings.Count(got, "• "); n != 10 {
		t.Fatalf("bullet count = %d, want 10", n)
	}
	if !strings.Contains(got, "• Area A: 100,000") {
		t.Fatalf("first entry malformed: %q", got)
	}
}

func TestFormatAnswer_NoRows(t *testing.T) {
	lib := loadTestLibrary(t)
	m, ok := lib.Match("population of barcelona")
	if !ok {
		t.Fatalf("Match() failed")
	}

	if _, err := FormatAnswer(m, nil); !errors.Is(err, ErrNoRows) {
		t.Fatalf("FormatAnswer(nil rows) error = %v, want ErrNoRows", err)
	}
}
