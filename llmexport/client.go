package llmexport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/lucasjlepore/fit-coach/feedback"
)

var _ feedback.Generator = (*Client)(nil)

// ErrEmptyResponse is returned when the endpoint answers without text.
var ErrEmptyResponse = errors.New("generator endpoint returned no text")

const maxResponseBytes = 1 << 20

// UpstreamError describes a failed exchange with the generator endpoint.
type UpstreamError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generator endpoint returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generator endpoint request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RetryPolicy configures retries on 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits a live session: a few quick retries, then give up until the
// next poll.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    4 * time.Second,
	}
}

// Client is a feedback.Generator backed by an HTTP endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	retry      RetryPolicy
	sleepFn    func(context.Context, time.Duration) error
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithModel sets the model name sent in the envelope.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithSleepFunc overrides the wait between retries. Tests use it to avoid real delays.
func WithSleepFunc(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithLogger sets the logger for retry diagnostics. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client posting to endpoint. apiKey may be empty.
func NewClient(endpoint, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse generator endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("generator endpoint must be http or https, got %q", endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retry:      DefaultRetryPolicy(),
		sleepFn:    sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "feedback-generator",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// Generate posts the request envelope and returns the endpoint's text.
func (c *Client) Generate(ctx context.Context, req feedback.Request) (feedback.Generated, error) {
	body, err := json.Marshal(BuildRequest(req, c.model))
	if err != nil {
		return feedback.Generated{}, fmt.Errorf("encode feedback request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return feedback.Generated{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return feedback.Generated{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(text),
		}
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return feedback.Generated{}, fmt.Errorf("decode generator response: %w", err)
	}
	if out.Text == "" {
		return feedback.Generated{}, ErrEmptyResponse
	}
	return feedback.Generated{Text: out.Text, ChainID: out.ResponseID}, nil
}

// do sends body with circuit breaking and retries. Non-retryable statuses are returned
// as responses; the caller closes the body.
func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	var lastStatus int
	var lastErr error

	attempts := 1 + c.retry.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build generator request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		lastStatus = 0
		var wait time.Duration
		if resp != nil {
			lastStatus = resp.StatusCode
			wait = c.computeBackoff(attempt, resp)
			resp.Body.Close()
		} else {
			wait = c.computeBackoff(attempt, nil)
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts-1 {
			c.logger.Debug("retrying generator request", "attempt", attempt+1, "status", lastStatus, "wait", wait, "error", err)
			if err := c.sleepFn(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return nil, &UpstreamError{StatusCode: lastStatus, Retryable: true, Err: lastErr}
}

// computeBackoff honours Retry-After, otherwise uses exponential backoff with jitter
// clamped to [MinWait, MaxWait].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retry.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retry.MinWait
				}
				return min(wait, c.retry.MaxWait)
			}
		}
	}

	base := float64(c.retry.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retry.MaxWait))
	minWait := float64(c.retry.MinWait)
	if base <= minWait {
		return c.retry.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
