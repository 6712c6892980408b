package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/urbanatlas/askcity/internal/reliability"
)

type scriptedAgent struct {
	calls   int
	results []func() (Answer, error)
}

func (a *scriptedAgent) Ask(context.Context, string, string) (Answer, error) {
	i := a.calls
	a.calls++
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	return a.results[i]()
}

func TestWithRetry_RetriesTransientOnce(t *testing.T) {
	inner := &scriptedAgent{results: []func() (Answer, error){
		func() (Answer, error) {
			return Answer{}, reliability.MarkTransient(errors.New("blip"))
		},
		func() (Answer, error) { return Answer{Answer: "ok"}, nil },
	}}

	a := WithRetry(inner, time.Millisecond)
	got, err := a.Ask(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Answer != "ok" || inner.calls != 2 {
		t.Fatalf("Ask() = %+v after %d calls, want ok after 2", got, inner.calls)
	}
}

func TestWithRetry_DoesNotRetryPermanentFailures(t *testing.T) {
	inner := &scriptedAgent{results: []func() (Answer, error){
		func() (Answer, error) {
			return Answer{}, &Error{Kind: KindParseError, Err: errors.New("garbled")}
		},
	}}

	a := WithRetry(inner, time.Millisecond)
	if _, err := a.Ask(context.Background(), "q", ""); err == nil {
		t.Fatalf("Ask() expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on parse errors)", inner.calls)
	}
}

func TestWithRetry_SingleRetryOnly(t *testing.T) {
	inner := &scriptedAgent{results: []func() (Answer, error){
		func() (Answer, error) {
			return Answer{}, reliability.MarkTransient(errors.New("still down"))
		},
	}}

	a := WithRetry(inner, time.Millisecond)
	if _, err := a.Ask(context.Background(), "q", ""); err == nil {
		t.Fatalf("Ask() expected error")
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want exactly 2", inner.calls)
	}
}

func TestNew_ModeSelection(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Config{Mode: "mock"}); err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	if _, err := New(ctx, Config{Mode: "auto"}); err != nil {
		t.Fatalf("New(auto) without keys error = %v", err)
	}
	if _, err := New(ctx, Config{Mode: "http"}); err == nil {
		t.Fatalf("New(http) without url should fail")
	}
	if _, err := New(ctx, Config{Mode: "gemini"}); err == nil {
		t.Fatalf("New(gemini) without key should fail")
	}
	if _, err := New(ctx, Config{Mode: "teleport"}); err == nil {
		t.Fatalf("New(teleport) should fail")
	}
}
