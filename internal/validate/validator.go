package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/urbanatlas/askcity/internal/cache"
	"github.com/urbanatlas/askcity/internal/db"
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonImplausibleValue Reason = "implausible_value"
	ReasonUnknownEntity    Reason = "unknown_entity"
	ReasonUnsafeQuery      Reason = "unsafe_query"
)

// Verdict is the outcome of validating one candidate answer. A rejected
// candidate carries the reason and, for unknown entities, name suggestions.
type Verdict struct {
	Accepted    bool
	Reason      Reason
	Detail      string
	Suggestions []string
	Warnings    []string
}

// Candidate is everything known about an answer before release.
type Candidate struct {
	Question string            // resolved question, used to infer the subject
	Answer   string            // natural-language answer text
	SQL      string            // statement that produced (or would produce) it
	Rows     []db.Row          // result rows when the pipeline has them
	Params   map[string]string // extracted template parameters
}

// subject is what the question appears to ask about; rules apply only when
// they match it.
type subject struct {
	geoLevel    int // 1 city, 2 district, 3 neighbourhood, 0 unknown
	population  bool
	featureKind string
}

// Validator applies the rule set to candidate answers.
type Validator struct {
	rules     *Rules
	districts map[string]string // normalized -> canonical
	kinds     map[string]bool
}

func New(rules *Rules) *Validator {
	v := &Validator{
		rules:     rules,
		districts: make(map[string]string, len(rules.Districts)),
		kinds:     make(map[string]bool, len(rules.FeatureKinds)),
	}
	for _, d := range rules.Districts {
		v.districts[cache.Normalize(d)] = d
	}
	for _, k := range rules.FeatureKinds {
		v.kinds[k] = true
	}
	return v
}

// Rules exposes the loaded rule set for components that share its gazetteer.
func (v *Validator) Rules() *Rules { return v.rules }

// Validate accepts or rejects a candidate. Checks run cheapest-and-hardest
// first: an unsafe statement rejects before anything else so it is never
// executed, then entities, then numeric plausibility; count oddities and SQL
// lint findings surface as warnings on an accepted verdict.
func (v *Validator) Validate(c Candidate) Verdict {
	if keyword, ok := CheckSQL(c.SQL); !ok {
		return Verdict{
			Accepted: false,
			Reason:   ReasonUnsafeQuery,
			Detail:   fmt.Sprintf("query contains data-mutating keyword %q", keyword),
		}
	}

	verdict := Verdict{Accepted: true, Warnings: LintSQL(c.SQL)}
	subj := v.inferSubject(c.Question)

	if reject, ok := v.checkEntities(c); !ok {
		return reject
	}
	if reject, ok := v.checkPopulation(c, subj); !ok {
		return reject
	}
	v.checkCounts(c, subj, &verdict)
	return verdict
}

// checkEntities verifies district names in extracted parameters, in
// district-level result rows, and in the answer text itself against the
// gazetteer. The answer scan is what catches an agent fabricating or
// misspelling a place name when there are no rows or params to inspect.
func (v *Validator) checkEntities(c Candidate) (Verdict, bool) {
	names := make([]string, 0, len(c.Params)+len(c.Rows))
	if d, ok := c.Params["district"]; ok {
		names = append(names, d)
	}
	if v.questionGeoLevel(c.Question) == 2 {
		for _, row := range c.Rows {
			if name, _ := rowNameValue(row); name != "" {
				names = append(names, name)
			}
		}
	}

	for _, name := range names {
		if _, known := v.districts[cache.Normalize(name)]; !known {
			return v.rejectEntity(name), false
		}
	}

	city := cache.Normalize(v.rules.City)
	for _, candidate := range answerPlaceCandidates(c.Answer) {
		normalized := cache.Normalize(candidate)
		if normalized == city {
			continue
		}
		if _, known := v.districts[normalized]; known {
			continue
		}
		// Only near-misses of gazetteer names reject; other capitalized
		// phrases (regions, countries) are outside the rule's scope.
		if len(Suggest(candidate, v.rules.Districts)) > 0 {
			return v.rejectEntity(candidate), false
		}
	}
	return Verdict{}, true
}

func (v *Validator) rejectEntity(name string) Verdict {
	return Verdict{
		Accepted:    false,
		Reason:      ReasonUnknownEntity,
		Detail:      fmt.Sprintf("%q is not a known %s district", name, v.rules.City),
		Suggestions: Suggest(name, v.rules.Districts),
	}
}

var placePrepositions = map[string]bool{
	"of": true, "in": true, "de": true, "del": true, "en": true,
}

// answerPlaceCandidates pulls capitalized phrases that follow a locative
// preposition ("of Eixampel", "en Les Corts"), the shape answers use to name
// an area. Candidates shorter than three runes are ignored; they match the
// gazetteer by accident, not by intent.
func answerPlaceCandidates(answer string) []string {
	words := strings.Fields(answer)
	var out []string
	for i := 0; i < len(words)-1; i++ {
		if !placePrepositions[strings.ToLower(trimWordPunct(words[i]))] {
			continue
		}
		var phrase []string
		j := i + 1
		for j < len(words) {
			w := trimWordPunct(words[j])
			if !startsUpper(w) {
				break
			}
			phrase = append(phrase, w)
			j++
		}
		if len(phrase) > 0 {
			candidate := strings.Join(phrase, " ")
			if len([]rune(candidate)) >= 3 {
				out = append(out, candidate)
			}
			i = j - 1
		}
	}
	return out
}

func trimWordPunct(w string) string {
	return strings.Trim(w, ",.:;¿?¡!\"'()")
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// checkPopulation applies the plausible band for the candidate's geographic
// level to its numeric value, wherever that value came from. The level
// evidenced by the result rows wins over the question text: a ranking
// question phrased against the city still returns district rows, and each
// row is judged by the district band.
func (v *Validator) checkPopulation(c Candidate, subj subject) (Verdict, bool) {
	level := subj.geoLevel
	if rl := v.resultGeoLevel(c.Rows); rl != 0 {
		level = rl
	}
	if !subj.population || level == 0 {
		return Verdict{}, true
	}
	band, ok := v.rules.Band(level)
	if !ok {
		return Verdict{}, true
	}

	values := v.candidateValues(c)
	for _, value := range values {
		if value < 0 {
			return Verdict{
				Accepted: false,
				Reason:   ReasonImplausibleValue,
				Detail:   fmt.Sprintf("negative population %v", value),
			}, false
		}
	}
	if len(c.Rows) == 0 && len(values) > 1 {
		// Prose answers often carry incidental numbers (years, rankings); the
		// population figure is the largest of them.
		values = []float64{maxValue(values)}
	}
	for _, value := range values {
		if value < band.Min || value > band.Max {
			return Verdict{
				Accepted: false,
				Reason:   ReasonImplausibleValue,
				Detail: fmt.Sprintf("population %.0f outside plausible range %.0f-%.0f for level %d",
					value, band.Min, band.Max, level),
			}, false
		}
	}
	return Verdict{}, true
}

// checkCounts flags odd-looking counts. Negative counts reject; everything
// else is a warning because counting data is noisier than census data.
func (v *Validator) checkCounts(c Candidate, subj subject, verdict *Verdict) {
	if subj.featureKind == "" || subj.population {
		return
	}
	for _, count := range v.candidateValues(c) {
		switch {
		case count < 0:
			verdict.Accepted = false
			verdict.Reason = ReasonImplausibleValue
			verdict.Detail = fmt.Sprintf("negative count %v", count)
			return
		case count > v.rules.CountLimits.Suspicious:
			verdict.Warnings = append(verdict.Warnings,
				fmt.Sprintf("very high count (%.0f) - please verify this is correct", count))
		case subj.featureKind == "school" && count > v.rules.CountLimits.School:
			verdict.Warnings = append(verdict.Warnings,
				fmt.Sprintf("unusually high school count: %.0f", count))
		case subj.featureKind == "hospital" && count > v.rules.CountLimits.Hospital:
			verdict.Warnings = append(verdict.Warnings,
				fmt.Sprintf("unusually high hospital count: %.0f", count))
		}
	}
	if !v.kinds[subj.featureKind] {
		verdict.Warnings = append(verdict.Warnings,
			fmt.Sprintf("unknown feature type: %s", subj.featureKind))
	}
}

// candidateValues collects the numeric values to check: result-row values
// when the pipeline has rows, otherwise numbers parsed out of the answer.
func (v *Validator) candidateValues(c Candidate) []float64 {
	var out []float64
	for _, row := range c.Rows {
		if _, value := rowNameValue(row); value != nil {
			if f, ok := toFloat(value); ok {
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		out = extractNumbers(c.Answer)
	}
	return out
}

func (v *Validator) inferSubject(question string) subject {
	q := cache.Normalize(question)
	s := subject{geoLevel: v.questionGeoLevel(question)}
	for _, marker := range []string{"poblacion", "population", "habitantes", "inhabitants"} {
		if strings.Contains(q, marker) {
			s.population = true
			break
		}
	}
	s.featureKind = featureKindOf(q)
	return s
}

// questionGeoLevel: a mentioned district wins over the city name because a
// district question usually names the city too ("in Eixample, Barcelona"),
// and a generic district word ("los distritos de Barcelona") still asks for
// district-level figures.
func (v *Validator) questionGeoLevel(question string) int {
	q := cache.Normalize(question)
	for normalized := range v.districts {
		if strings.Contains(q, normalized) {
			return 2
		}
	}
	for _, marker := range []string{"barrio", "neighborhood", "neighbourhood", "vecindario"} {
		if strings.Contains(q, marker) {
			return 3
		}
	}
	for _, marker := range []string{"distrito", "district"} {
		if strings.Contains(q, marker) {
			return 2
		}
	}
	if strings.Contains(q, cache.Normalize(v.rules.City)) {
		return 1
	}
	return 0
}

// resultGeoLevel infers the level from named result rows: a result set naming
// known districts carries district-level figures no matter how the question
// was phrased. Any non-district name disqualifies the inference.
func (v *Validator) resultGeoLevel(rows []db.Row) int {
	named := 0
	for _, row := range rows {
		name, _ := rowNameValue(row)
		if name == "" {
			continue
		}
		if _, known := v.districts[cache.Normalize(name)]; !known {
			return 0
		}
		named++
	}
	if named == 0 {
		return 0
	}
	return 2
}

var featureSynonyms = map[string]string{
	"school": "school", "schools": "school", "escuela": "school", "escuelas": "school",
	"colegio": "school", "colegios": "school",
	"hospital": "hospital", "hospitales": "hospital", "hospitals": "hospital",
	"park": "park", "parks": "park", "parque": "park", "parques": "park",
	"metro": "metro_station", "library": "library", "libraries": "library",
	"biblioteca": "library", "bibliotecas": "library",
	"market": "market", "markets": "market", "mercado": "market", "mercados": "market",
}

func featureKindOf(normalizedQuestion string) string {
	for _, word := range strings.Fields(normalizedQuestion) {
		if kind, ok := featureSynonyms[strings.Trim(word, "¿?.,!")]; ok {
			return kind
		}
	}
	return ""
}

func rowNameValue(r db.Row) (string, any) {
	switch len(r.Values) {
	case 0:
		return "", nil
	case 1:
		return "", r.Values[0]
	default:
		name, _ := r.Values[0].(string)
		return name, r.Values[1]
	}
}

var numberPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// extractNumbers parses numerics out of answer text, tolerating comma
// thousands separators.
func extractNumbers(answer string) []float64 {
	var out []float64
	for _, m := range numberPattern.FindAllString(answer, -1) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

func maxValue(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func toFloat(v any) (float64, bool) {
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
