// Package httpcall is the single chokepoint for outbound HTTP. Every
// request passes through the upstream's rate limiter and gets bounded
// retries with exponential backoff and Retry-After handling.
package httpcall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/reader-sync/internal/ratelimit"
)

// Defaults for the retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 60 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// Request is one logical HTTP operation. The body is held as bytes so
// it can be replayed across attempts.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   []byte
}

// Response is the terminal response of a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestError is returned when a call exhausts its attempts or hits a
// non-retryable status. StatusCode is zero for pure transport failures.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request failed: %s %s: %v", e.Method, e.URL, e.Cause)
	}
	return fmt.Sprintf("request failed: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Options configures a Caller.
type Options struct {
	HTTPClient  *http.Client
	Limiter     *ratelimit.Limiter
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Caller issues rate-limited HTTP calls with retries.
type Caller struct {
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Caller, applying defaults for any unset option.
func New(opts Options) *Caller {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &Caller{
		httpClient:  httpClient,
		limiter:     opts.Limiter,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		sleep:       sleepContext,
	}
}

// Do performs the request with up to MaxAttempts physical attempts.
// The rate limiter is consulted before every attempt, retries
// included. HTTP 429 waits the server-declared cooldown when present,
// the current backoff delay otherwise.
func (c *Caller) Do(ctx context.Context, req Request) (*Response, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
		if err != nil {
			return nil, &RequestError{Method: req.Method, URL: target, Cause: err}
		}
		for key, values := range req.Header {
			for _, value := range values {
				httpReq.Header.Add(key, value)
			}
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = &RequestError{Method: req.Method, URL: target, Cause: err}
			if attempt < c.maxAttempts {
				if waitErr := c.sleep(ctx, c.backoff(attempt)); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = &RequestError{Method: req.Method, URL: target, Cause: readErr}
			if attempt < c.maxAttempts {
				if waitErr := c.sleep(ctx, c.backoff(attempt)); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
		}

		lastErr = &RequestError{
			Method:     req.Method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}

		if attempt < c.maxAttempts {
			delay := c.backoff(attempt)
			if resp.StatusCode == http.StatusTooManyRequests {
				if cooldown := parseRetryAfter(resp.Header.Get("Retry-After")); cooldown > 0 {
					delay = cooldown
				}
			}
			if waitErr := c.sleep(ctx, delay); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
	}
	return nil, lastErr
}

// backoff returns the delay before the attempt after the given one,
// doubling per attempt and capped at MaxDelay.
func (c *Caller) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

// parseRetryAfter reads a server cooldown declared in whole seconds.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext pauses for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
