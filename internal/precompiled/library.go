// Package precompiled matches questions against a fixed library of SQL
// templates so common questions are answered without invoking the agent.
package precompiled

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/urbanatlas/askcity/internal/cache"
)

// Shape tells the formatter how to turn result rows into an answer.
type Shape string

const (
	ShapeSingleValue Shape = "single_value"
	ShapeNamedValue  Shape = "named_value"
	ShapeCount       Shape = "count"
	ShapeRanking     Shape = "ranking"
)

// Template is one precompiled query. Immutable after load.
type Template struct {
	ID       string   `yaml:"id"`
	Patterns []string `yaml:"patterns"`
	Params   []string `yaml:"params"`
	SQL      string   `yaml:"sql"`
	Answer   string   `yaml:"answer"`
	Shape    Shape    `yaml:"shape"`

	normalizedPatterns []string
}

// Match is a successful template selection with extracted SQL arguments.
type Match struct {
	Template *Template
	Args     []any
	Params   map[string]string
}

type libraryFile struct {
	Templates []*Template `yaml:"templates"`
}

type knownName struct {
	canonical  string
	normalized string
}

// Library holds the ordered template list plus the gazetteer used for
// parameter extraction. Order in the file is the priority order.
type Library struct {
	templates []*Template
	districts []knownName
}

//go:embed templates.yaml
var embeddedTemplates []byte

// LoadDefault builds the library from the embedded corpus.
func LoadDefault(districtNames []string) (*Library, error) {
	return load(embeddedTemplates, districtNames)
}

// LoadFile builds the library from an operator-supplied YAML file.
func LoadFile(path string, districtNames []string) (*Library, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template library: %w", err)
	}
	return load(raw, districtNames)
}

func load(raw []byte, districtNames []string) (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse template library: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("template library is empty")
	}

	for _, t := range file.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template missing id")
		}
		if len(t.Patterns) == 0 {
			return nil, fmt.Errorf("template %s has no patterns", t.ID)
		}
		if strings.TrimSpace(t.SQL) == "" {
			return nil, fmt.Errorf("template %s has no sql", t.ID)
		}
		switch t.Shape {
		case ShapeSingleValue, ShapeNamedValue, ShapeCount, ShapeRanking:
		default:
			return nil, fmt.Errorf("template %s has unknown shape %q", t.ID, t.Shape)
		}
		for _, p := range t.Params {
			if p != "district" {
				return nil, fmt.Errorf("template %s has unknown param %q", t.ID, p)
			}
		}
		t.normalizedPatterns = make([]string, len(t.Patterns))
		for i, p := range t.Patterns {
			t.normalizedPatterns[i] = cache.Normalize(p)
		}
	}

	lib := &Library{templates: file.Templates}
	for _, name := range districtNames {
		lib.districts = append(lib.districts, knownName{
			canonical:  name,
			normalized: cache.Normalize(name),
		})
	}
	return lib, nil
}

// Len reports the number of loaded templates.
func (l *Library) Len() int {
	return len(l.templates)
}

// Match tries templates in library order and returns the first whose trigger
// matches and whose parameters extract. A trigger hit with a failed
// extraction falls through to later templates, never errors.
func (l *Library) Match(resolvedQuestion string) (Match, bool) {
	norm := cache.Normalize(resolvedQuestion)
	if norm == "" {
		return Match{}, false
	}

	for _, t := range l.templates {
		if !t.triggerMatches(norm) {
			continue
		}
		m, ok := l.extractParams(t, norm)
		if !ok {
			continue
		}
		return m, true
	}
	return Match{}, false
}

func (t *Template) triggerMatches(normalizedQuestion string) bool {
	for _, p := range t.normalizedPatterns {
		if strings.Contains(normalizedQuestion, p) {
			return true
		}
	}
	return false
}

func (l *Library) extractParams(t *Template, normalizedQuestion string) (Match, bool) {
	m := Match{Template: t}
	if len(t.Params) == 0 {
		return m, true
	}
	m.Params = make(map[string]string, len(t.Params))
	for _, p := range t.Params {
		// Only district extraction exists today; load() rejects others.
		name, ok := l.uniqueDistrict(normalizedQuestion)
		if !ok {
			return Match{}, false
		}
		m.Params[p] = name
		m.Args = append(m.Args, name)
	}
	return m, true
}

// uniqueDistrict finds exactly one known district mentioned in the question.
// Zero mentions or several (a comparison question) both fail extraction.
func (l *Library) uniqueDistrict(normalizedQuestion string) (string, bool) {
	found := ""
	for _, d := range l.districts {
		if containsWord(normalizedQuestion, d.normalized) {
			if found != "" {
				return "", false
			}
			found = d.canonical
		}
	}
	return found, found != ""
}

// containsWord reports whether needle occurs in haystack on word boundaries,
// so a district name never matches inside a longer word.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		if boundaryBefore(haystack, idx) && boundaryAfter(haystack, idx+len(needle)) {
			return true
		}
		start = idx + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i <= 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
