package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/urbanatlas/askcity/internal/cache"
)

// MockAgent provides deterministic local replies when no model backend is
// configured. It knows the Barcelona district corpus, so end-to-end tests
// and dependency-free deployments still get realistic answers.
type MockAgent struct {
	districts map[string]mockDistrict
}

type mockDistrict struct {
	name       string
	population int64
}

func NewMockAgent() *MockAgent {
	a := &MockAgent{districts: make(map[string]mockDistrict)}
	for _, d := range []mockDistrict{
		{"Ciutat Vella", 108_331},
		{"Eixample", 266_416},
		{"Sants-Montjuïc", 183_120},
		{"Les Corts", 82_033},
		{"Sarrià-Sant Gervasi", 149_279},
		{"Gràcia", 121_798},
		{"Horta-Guinardó", 171_495},
		{"Nou Barris", 170_669},
		{"Sant Andreu", 148_560},
		{"Sant Martí", 240_521},
	} {
		a.districts[cache.Normalize(d.name)] = d
	}
	return a
}

func (a *MockAgent) Ask(ctx context.Context, question, transcript string) (Answer, error) {
	select {
	case <-ctx.Done():
		return Answer{}, classify(ctx.Err(), KindTimeout)
	default:
	}

	q := cache.Normalize(question)
	for normalized, d := range a.districts {
		if strings.Contains(q, normalized) {
			return Answer{
				SQL: fmt.Sprintf(
					"SELECT g.name, i.value FROM geographical_unit_view g JOIN current_indicators_view i ON g.geo_id = i.geo_id WHERE g.geo_level_id = 2 AND lower(g.name) = lower('%s') ORDER BY i.year DESC LIMIT 1",
					d.name),
				Answer: fmt.Sprintf("The population of %s is %s inhabitants.", d.name, humanize.Comma(d.population)),
			}, nil
		}
	}

	if transcript != "" {
		return Answer{
			Answer: fmt.Sprintf("Considering the previous conversation, I do not have enough data to answer: %s", strings.TrimSpace(question)),
		}, nil
	}
	return Answer{
		Answer: fmt.Sprintf("I do not have enough data to answer: %s", strings.TrimSpace(question)),
	}, nil
}
