package validate

import (
	"sort"
	"strings"

	"github.com/urbanatlas/askcity/internal/cache"
)

const (
	similarityThreshold = 0.6
	maxSuggestions      = 3
)

// Suggest returns up to three known names similar to an unknown one, best
// first. A substring hit in either direction counts as similar; otherwise
// word-level Jaccard overlap must clear the threshold.
func Suggest(name string, known []string) []string {
	target := cache.Normalize(name)
	if target == "" {
		return nil
	}

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, k := range known {
		kn := cache.Normalize(k)
		if kn == "" {
			continue
		}
		score := similarity(target, kn)
		if score >= similarityThreshold {
			candidates = append(candidates, scored{name: k, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}
	return jaccard(a, b)
}

// jaccard is rune-set overlap: |intersection| / |union|. Cheap, and tolerant
// of the transposition typos people make in Catalan place names.
func jaccard(a, b string) float64 {
	setA := runeSet(a)
	setB := runeSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	union := len(setB)
	for r := range setA {
		if setB[r] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		if r != ' ' {
			set[r] = true
		}
	}
	return set
}
