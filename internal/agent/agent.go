// Package agent abstracts the language-model collaborator behind a single
// ask capability so the query pipeline never depends on any one provider's
// reasoning protocol.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Answer is the agent's reply: the SQL it reasoned its way to and the
// natural-language answer derived from it. SQL may be empty when the agent
// answered without touching the database.
type Answer struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
}

// Agent is the external reasoning collaborator.
type Agent interface {
	Ask(ctx context.Context, question, transcript string) (Answer, error)
}

// ErrorKind classifies agent failures for the caller's taxonomy.
type ErrorKind string

const (
	KindParseError ErrorKind = "parse_error"
	KindTimeout    ErrorKind = "timeout"
	KindToolError  ErrorKind = "tool_error"
)

// Error is a classified agent failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("agent %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps an error as an agent Error, mapping context deadlines to the
// timeout kind. Already-classified errors pass through untouched.
func classify(err error, fallback ErrorKind) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: fallback, Err: err}
}

// Config controls agent construction.
type Config struct {
	Mode         string
	HTTPURL      string
	Timeout      time.Duration
	RetryBackoff time.Duration
	GeminiAPIKey string
	GeminiModel  string
}

// New builds the agent for the configured mode, wrapped with one
// transient-failure retry. auto prefers gemini when a key is present, then
// http when a URL is present, then the deterministic mock.
func New(ctx context.Context, cfg Config) (Agent, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	var (
		inner Agent
		err   error
	)
	switch mode {
	case "auto":
		inner, err = newAutoAgent(ctx, cfg)
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("gemini API key is required for gemini mode")
		}
		inner, err = NewGeminiAgent(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("agent HTTP url is required for http mode")
		}
		inner = NewHTTPAgent(cfg.HTTPURL, cfg.Timeout)
	case "mock":
		inner = NewMockAgent()
	default:
		return nil, fmt.Errorf("unsupported agent mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(inner, cfg.RetryBackoff), nil
}

func newAutoAgent(ctx context.Context, cfg Config) (Agent, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		return NewGeminiAgent(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPAgent(cfg.HTTPURL, cfg.Timeout), nil
	}
	return NewMockAgent(), nil
}
