package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bacopilot/internal/logging"
	"bacopilot/internal/metrics"
)

var (
	ErrNotConfigured   = errors.New("ai service url is not configured")
	ErrRejected        = errors.New("ai service rejected the request")
	ErrUnavailable     = errors.New("ai service unavailable")
	ErrInvalidResponse = errors.New("ai service returned an invalid response")
)

// StatusError is returned for non 2xx answers from an AI service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service status %d: %s", e.StatusCode, e.Body)
}

// Result is the decoded JSON body of an AI service answer. Response holds the
// value of its "response" field.
type Result struct {
	Raw      map[string]any
	Response any
}

// ResponseMap returns Response when it is a JSON object.
func (r *Result) ResponseMap() (map[string]any, bool) {
	m, ok := r.Response.(map[string]any)
	return m, ok
}

type Client struct {
	httpClient  *http.Client
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the wait before retry n to base * 2^n.
func WithBackoffBase(base time.Duration) Option {
	return func(c *Client) {
		c.backoff = func(attempt int) time.Duration {
			return base * time.Duration(1<<attempt)
		}
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 3,
	}
	WithBackoffBase(time.Second)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAttempts returns a copy of the client using a different attempt budget.
func (c *Client) WithAttempts(n int) *Client {
	cp := *c
	if n > 0 {
		cp.maxAttempts = n
	}
	return &cp
}

// Call POSTs payload as JSON to url. Client errors (4xx) fail immediately;
// server errors, transport errors and timeouts are retried with exponential
// backoff until the attempt budget runs out.
func (c *Client) Call(ctx context.Context, url string, payload any) (*Result, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ai request failed: %w", err)
	}

	logger := logging.FromContext(ctx).With("ai_url", url)
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, retry, err := c.do(ctx, url, body)
		if err == nil {
			metrics.AICalls.WithLabelValues("ok").Inc()
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.AICalls.WithLabelValues("canceled").Inc()
			return nil, ctxErr
		}
		if !retry {
			metrics.AICalls.WithLabelValues(outcomeOf(err)).Inc()
			return nil, err
		}

		lastErr = err
		logger.Warn("ai call attempt failed", "attempt", attempt, "max_attempts", c.maxAttempts, "error", err)
		if attempt == c.maxAttempts {
			break
		}

		metrics.AIRetries.Inc()
		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.AICalls.WithLabelValues("canceled").Inc()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	metrics.AICalls.WithLabelValues("unavailable").Inc()
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, url string, body []byte) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build ai request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read ai response failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, false, fmt.Errorf("%w: %w", ErrRejected, statusErr)
		}
		return nil, true, statusErr
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &Result{Raw: parsed, Response: parsed["response"]}, false, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
