package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/urbanatlas/askcity/internal/reliability"
)

// HTTPAgent forwards questions to an external agent service speaking a small
// JSON contract: POST {question, context} and receive {sql, answer}.
type HTTPAgent struct {
	url    string
	client *http.Client
}

func NewHTTPAgent(url string, timeout time.Duration) *HTTPAgent {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPAgent{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type httpAskRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

type httpAskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

func (a *HTTPAgent) Ask(ctx context.Context, question, transcript string) (Answer, error) {
	payload, err := json.Marshal(httpAskRequest{Question: question, Context: transcript})
	if err != nil {
		return Answer{}, classify(fmt.Errorf("marshal request: %w", err), KindToolError)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Answer{}, classify(fmt.Errorf("create request: %w", err), KindToolError)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		kind := KindToolError
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		return Answer{}, &Error{Kind: kind, Err: reliability.MarkTransient(fmt.Errorf("send request: %w", err))}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("agent http status %d: %s", res.StatusCode, string(body))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Answer{}, &Error{Kind: KindToolError, Err: reliability.MarkTransient(err)}
		}
		return Answer{}, &Error{Kind: KindToolError, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Answer{}, classify(fmt.Errorf("read response: %w", err), KindToolError)
	}

	var parsed httpAskResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Answer{}, &Error{Kind: KindParseError, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != "" {
		return Answer{}, &Error{Kind: KindToolError, Err: fmt.Errorf("agent reported: %s", parsed.Error)}
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return Answer{}, &Error{Kind: KindParseError, Err: fmt.Errorf("agent response has no answer")}
	}
	return Answer{SQL: parsed.SQL, Answer: parsed.Answer}, nil
}
