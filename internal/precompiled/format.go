package precompiled

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/urbanatlas/askcity/internal/db"
)

// ErrNoRows reports a template query that returned nothing to format.
var ErrNoRows = errors.New("template query returned no rows")

const rankingLimit = 10

// FormatAnswer renders the deterministic natural-language answer for a
// matched template from its query results.
func FormatAnswer(m Match, rows []db.Row) (string, error) {
	if m.Template == nil {
		return "", errors.New("format called without a matched template")
	}
	if len(rows) == 0 {
		return "", ErrNoRows
	}

	switch m.Template.Shape {
	case ShapeCount, ShapeSingleValue:
		_, value := nameAndValue(rows[0])
		return strings.ReplaceAll(m.Template.Answer, "{value}", displayValue(value)), nil

	case ShapeNamedValue:
		name, value := nameAndValue(rows[0])
		out := strings.ReplaceAll(m.Template.Answer, "{name}", name)
		return strings.ReplaceAll(out, "{value}", displayValue(value)), nil

	case ShapeRanking:
		var b strings.Builder
		b.WriteString(m.Template.Answer)
		limit := len(rows)
		if limit > rankingLimit {
			limit = rankingLimit
		}
		for _, row := range rows[:limit] {
			name, value := nameAndValue(row)
			b.WriteString("\n• ")
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(displayValue(value))
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("template %s has unformattable shape %q", m.Template.ID, m.Template.Shape)
}

// nameAndValue splits a result row positionally: two or more columns mean
// (name, value), a single column is the value alone.
func nameAndValue(r db.Row) (string, any) {
	switch len(r.Values) {
	case 0:
		return "", nil
	case 1:
		return "", r.Values[0]
	default:
		return fmt.Sprint(r.Values[0]), r.Values[1]
	}
}

// displayValue renders numerics with comma separators and no decimals,
// anything else verbatim.
func displayValue(v any) string {
	if f, ok := asFloat(v); ok {
		return humanize.Comma(int64(math.Round(f)))
	}
	return fmt.Sprint(v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
