package conversation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWindow_FIFOBound(t *testing.T) {
	w := NewWindow(3)
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		w.Append(Turn{Role: RoleUser, Content: content})
		if w.Len() > 3 {
			t.Fatalf("window grew to %d turns, max is 3", w.Len())
		}
	}

	turns := w.Turns()
	if len(turns) != 3 {
		t.Fatalf("Len = %d, want 3", len(turns))
	}
	if turns[0].Content != "three" || turns[2].Content != "five" {
		t.Fatalf("oldest turns not evicted first: %+v", turns)
	}
}

func TestWindow_ZeroMaxKeepsNothing(t *testing.T) {
	w := NewWindow(0)
	w.Append(Turn{Role: RoleUser, Content: "hello"})
	if w.Len() != 0 {
		t.Fatalf("zero-max window retained %d turns", w.Len())
	}
}

func TestAssemble_ScopeClause(t *testing.T) {
	a := NewAssembler(6, 4096)

	resolved, _ := a.Assemble("  ¿Cuántas escuelas hay?  ", NewWindow(6), "Gràcia")
	want := "In the context of Gràcia: ¿Cuántas escuelas hay?"
	if resolved != want {
		t.Fatalf("Assemble() resolved = %q, want %q", resolved, want)
	}

	resolved, _ = a.Assemble("¿Cuántas escuelas hay?", NewWindow(6), "")
	if resolved != "¿Cuántas escuelas hay?" {
		t.Fatalf("unscoped question should pass through, got %q", resolved)
	}
}

func TestTranscript_LabelsOldestFirst(t *testing.T) {
	a := NewAssembler(6, 4096)
	w := NewWindow(6)
	w.Append(Turn{Role: RoleUser, Content: "Show me the districts with the highest population"})
	w.Append(Turn{Role: RoleAssistant, Content: "1. Eixample 2. Sant Martí 3. Sants-Montjuïc"})

	got := a.Transcript(w)
	want := "User: Show me the districts with the highest population\n" +
		"Assistant: 1. Eixample 2. Sant Martí 3. Sants-Montjuïc"
	if got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
}

func TestTranscript_FollowUpKeepsPriorTurnVerbatim(t *testing.T) {
	a := NewAssembler(6, 4096)
	w := NewWindow(6)
	ranking := "Los distritos por población son: Eixample, Sant Martí, Sants-Montjuïc"
	w.Append(Turn{Role: RoleAssistant, Content: ranking})

	_, transcript := a.Assemble("¿Y el segundo?", w, "")
	if !strings.Contains(transcript, ranking) {
		t.Fatalf("transcript lost the prior turn: %q", transcript)
	}
}

func TestTranscript_HardCapHolds(t *testing.T) {
	const n = 6
	const maxChars = 512
	a := NewAssembler(n, maxChars)
	long := strings.Repeat("población ", 40) // ~400 bytes per turn

	for _, size := range []int{0, n, 10 * n} {
		w := NewWindow(10 * n)
		for i := 0; i < size; i++ {
			w.Append(Turn{Role: RoleUser, Content: long})
		}
		if got := a.Transcript(w); len(got) > maxChars {
			t.Fatalf("transcript length %d exceeds cap %d at window size %d", len(got), maxChars, size)
		}
	}
}

func TestTranscript_OversizedSingleTurnTruncated(t *testing.T) {
	a := NewAssembler(6, 128)
	w := NewWindow(6)
	w.Append(Turn{Role: RoleUser, Content: strings.Repeat("Gràcia ", 100)})

	got := a.Transcript(w)
	if len(got) > 128 {
		t.Fatalf("oversized turn not truncated: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncation marker missing: %q", got)
	}
}
