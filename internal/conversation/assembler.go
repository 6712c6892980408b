package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const defaultTranscriptMaxChars = 4096

// Assembler bounds and formats conversational context for the agent. It does
// no semantic reference resolution itself; pronouns and follow-ups are
// resolved by the agent against the transcript it receives.
type Assembler struct {
	maxTurns int
	maxChars int
}

// NewAssembler creates an assembler keeping at most maxTurns turns and
// capping the formatted transcript at maxChars bytes. The byte cap holds
// regardless of maxTurns, so a misconfigured window cannot blow up the
// context cost.
func NewAssembler(maxTurns, maxChars int) *Assembler {
	if maxTurns < 0 {
		maxTurns = 0
	}
	if maxChars <= 0 {
		maxChars = defaultTranscriptMaxChars
	}
	return &Assembler{maxTurns: maxTurns, maxChars: maxChars}
}

// Assemble returns the resolved question and the bounded transcript. A
// present geographic scope is prepended as an explicit clause; it changes
// both the cache key and the agent's input.
func (a *Assembler) Assemble(raw string, window *Window, geoScope string) (resolved, transcript string) {
	resolved = strings.TrimSpace(raw)
	if scope := strings.TrimSpace(geoScope); scope != "" {
		resolved = fmt.Sprintf("In the context of %s: %s", scope, resolved)
	}
	return resolved, a.Transcript(window)
}

// Transcript formats the window oldest-first with speaker labels, trimmed to
// the most recent maxTurns turns and hard-capped at maxChars bytes by
// dropping oldest turns first.
func (a *Assembler) Transcript(window *Window) string {
	turns := window.Turns()
	if len(turns) > a.maxTurns {
		turns = turns[len(turns)-a.maxTurns:]
	}

	lines := make([]string, len(turns))
	total := 0
	for i, t := range turns {
		lines[i] = speakerLabel(t.Role) + ": " + t.Content
		total += len(lines[i]) + 1
	}

	// Drop oldest lines until the joined transcript fits the cap.
	for len(lines) > 1 && total > a.maxChars {
		total -= len(lines[0]) + 1
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ""
	}
	if len(lines) == 1 && len(lines[0]) > a.maxChars {
		lines[0] = truncateLine(lines[0], a.maxChars)
	}
	return strings.Join(lines, "\n")
}

func speakerLabel(r Role) string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// truncateLine cuts to max bytes on a rune boundary, marking the cut.
func truncateLine(line string, max int) string {
	cut := max
	marker := ""
	if max > 3 {
		cut = max - 3
		marker = "..."
	}
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + marker
}
