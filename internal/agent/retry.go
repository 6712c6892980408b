package agent

import (
	"context"
	"time"

	"github.com/urbanatlas/askcity/internal/reliability"
)

// retryAgent retries a failed ask exactly once when the failure looks
// transient. One retry keeps worst-case latency at roughly two agent calls;
// anything beyond that belongs to the caller's degradation policy.
type retryAgent struct {
	inner   Agent
	backoff time.Duration
}

// WithRetry wraps an agent with a single transient-failure retry.
func WithRetry(inner Agent, backoff time.Duration) Agent {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retryAgent{inner: inner, backoff: backoff}
}

func (a *retryAgent) Ask(ctx context.Context, question, transcript string) (Answer, error) {
	answer, err := a.inner.Ask(ctx, question, transcript)
	if err == nil || !reliability.IsTransient(err) {
		return answer, err
	}

	select {
	case <-ctx.Done():
		return Answer{}, classify(ctx.Err(), KindTimeout)
	case <-time.After(reliability.ExponentialBackoff(1, a.backoff, 5*time.Second)):
	}
	return a.inner.Ask(ctx, question, transcript)
}
