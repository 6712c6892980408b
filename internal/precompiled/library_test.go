package precompiled

import "testing"

var testDistricts = []string{
	"Ciutat Vella", "Eixample", "Sants-Montjuïc", "Les Corts",
	"Sarrià-Sant Gervasi", "Gràcia", "Horta-Guinardó", "Nou Barris",
	"Sant Andreu", "Sant Martí",
}

func loadTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := LoadDefault(testDistricts)
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	return lib
}

func TestMatch_CityPopulation(t *testing.T) {
	lib := loadTestLibrary(t)

	m, ok := lib.Match("¿Cuál es la población de Barcelona?")
	if !ok {
		t.Fatalf("Match() = no match, want population_barcelona")
	}
	if m.Template.ID != "population_barcelona" {
		t.Fatalf("Template.ID = %s, want population_barcelona", m.Template.ID)
	}
	if len(m.Args) != 0 {
		t.Fatalf("Args = %v, want none", m.Args)
	}
}

func TestMatch_DistrictPopulationExtractsCanonicalName(t *testing.T) {
	lib := loadTestLibrary(t)

	cases := []struct {
		question string
		want     string
	}{
		{"¿Cuál es la población de Eixample?", "Eixample"},
		{"poblacion de gracia", "Gràcia"},
		{"What is the population of Sarrià-Sant Gervasi?", "Sarrià-Sant Gervasi"},
		{"¿Cuántos habitantes tiene Nou Barris?", "Nou Barris"},
	}
	for _, tc := range cases {
		m, ok := lib.Match(tc.question)
		if !ok {
			t.Fatalf("Match(%q) = no match", tc.question)
		}
		if m.Template.ID != "district_population" {
			t.Fatalf("Match(%q) template = %s, want district_population", tc.question, m.Template.ID)
		}
		if m.Params["district"] != tc.want {
			t.Fatalf("Match(%q) district = %q, want %q", tc.question, m.Params["district"], tc.want)
		}
		if len(m.Args) != 1 || m.Args[0] != tc.want {
			t.Fatalf("Match(%q) args = %v, want [%q]", tc.question, m.Args, tc.want)
		}
	}
}

func TestMatch_ComparisonFallsThroughToAgent(t *testing.T) {
	lib := loadTestLibrary(t)

	// Two districts mentioned: extraction is ambiguous, and no later
	// template matches either, so the agent gets the question.
	if m, ok := lib.Match("Compara la población de Sarrià-Sant Gervasi y Nou Barris"); ok {
		t.Fatalf("Match() = %s, want fall-through for comparison question", m.Template.ID)
	}
}

func TestMatch_ExtractionFailureTriesLaterTemplates(t *testing.T) {
	lib := loadTestLibrary(t)

	// "población de los distritos" trips the district trigger first, but no
	// district name extracts, so the ranking template must win.
	m, ok := lib.Match("¿Cuál es la población de los distritos?")
	if !ok {
		t.Fatalf("Match() = no match, want population_by_district")
	}
	if m.Template.ID != "population_by_district" {
		t.Fatalf("Template.ID = %s, want population_by_district", m.Template.ID)
	}
}

func TestMatch_DistrictsCount(t *testing.T) {
	lib := loadTestLibrary(t)

	m, ok := lib.Match("¿Cuántos distritos tiene Barcelona?")
	if !ok || m.Template.ID != "districts_count" {
		t.Fatalf("Match() = %+v, %v; want districts_count", m, ok)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	lib := loadTestLibrary(t)
	q := "¿Cuál es la población de Eixample?"

	first, ok1 := lib.Match(q)
	second, ok2 := lib.Match(q)
	if !ok1 || !ok2 {
		t.Fatalf("Match() flaked: %v %v", ok1, ok2)
	}
	if first.Template.ID != second.Template.ID || first.Params["district"] != second.Params["district"] {
		t.Fatalf("Match() not deterministic: %+v vs %+v", first, second)
	}
}

func TestMatch_NoTemplate(t *testing.T) {
	lib := loadTestLibrary(t)

	for _, q := range []string{"", "What is the meaning of life?", "¿Dónde está la biblioteca?"} {
		if m, ok := lib.Match(q); ok {
			t.Fatalf("Match(%q) = %s, want no match", q, m.Template.ID)
		}
	}
}

func TestLoadDefault_TemplateCount(t *testing.T) {
	lib := loadTestLibrary(t)
	if lib.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", lib.Len())
	}
}
