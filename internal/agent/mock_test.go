package agent

import (
	"context"
	"strings"
	"testing"
)

func TestMockAgent_KnowsDistricts(t *testing.T) {
	a := NewMockAgent()

	got, err := a.Ask(context.Background(), "¿Cuál es la población de Eixample?", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(got.Answer, "Eixample") || !strings.Contains(got.Answer, "266,416") {
		t.Fatalf("Ask() answer = %q, want Eixample population", got.Answer)
	}
	if !strings.Contains(strings.ToLower(got.SQL), "select") {
		t.Fatalf("Ask() sql = %q, want a SELECT statement", got.SQL)
	}
}

func TestMockAgent_AccentInsensitive(t *testing.T) {
	a := NewMockAgent()

	got, err := a.Ask(context.Background(), "population of gracia", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(got.Answer, "Gràcia") {
		t.Fatalf("Ask() answer = %q, want Gràcia", got.Answer)
	}
}

func TestMockAgent_UnknownQuestionDegrades(t *testing.T) {
	a := NewMockAgent()

	got, err := a.Ask(context.Background(), "how tall is the Sagrada Família?", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(got.Answer, "do not have enough data") {
		t.Fatalf("Ask() answer = %q, want honest degradation", got.Answer)
	}
	if got.SQL != "" {
		t.Fatalf("Ask() sql = %q, want empty for unknown question", got.SQL)
	}
}

func TestMockAgent_CancelledContext(t *testing.T) {
	a := NewMockAgent()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Ask(ctx, "población de Eixample", ""); err == nil {
		t.Fatalf("Ask() with cancelled context should fail")
	}
}
