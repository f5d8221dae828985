// Package httpclient performs outbound GET requests with a bounded timeout,
// exponential backoff retries and a circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/sony/gobreaker"
)

// maxBodyBytes caps how much of an upstream response is read into memory.
const maxBodyBytes = 32 << 20

var (
	errServerError = errors.New("server error")
	errRateLimited = errors.New("rate limited")
	errCircuitOpen = errors.New("circuit breaker open")
)

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Backoff controls the retry schedule. The delay before retry n is
// Initial * 2^n, capped at Max.
type Backoff struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

// DefaultBackoff returns the schedule used for all upstream clients.
func DefaultBackoff(maxRetries int) Backoff {
	return Backoff{MaxRetries: maxRetries, Initial: 500 * time.Millisecond, Max: 5 * time.Second}
}

// Client fetches upstream documents on behalf of one named adapter.
type Client struct {
	name    string
	http    *http.Client
	backoff Backoff
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a client whose breaker and metrics are labeled with name.
func New(name string, timeout time.Duration, backoff Backoff, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		backoff: backoff,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var se *StatusError
				return err == nil || errors.As(err, &se)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "client", name, "from", from.String(), "to", to.String())
			},
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// Get fetches rawURL and returns the response body. Transport errors, 429 and
// 5xx responses are retried; other non-2xx statuses fail immediately. Every
// failure is a domain network error.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, c.name+" get", err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (any, error) {
			return c.do(ctx, rawURL)
		})
		if err == nil {
			c.metrics.UpstreamRequests.WithLabelValues(c.name, "success").Inc()
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.UpstreamRequests.WithLabelValues(c.name, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %w", errCircuitOpen, err)
		}

		var se *StatusError
		if errors.As(err, &se) || attempt >= c.backoff.MaxRetries {
			c.metrics.UpstreamRequests.WithLabelValues(c.name, "error").Inc()
			return nil, err
		}

		c.metrics.UpstreamRequests.WithLabelValues(c.name, "retry").Inc()
		delay := c.delay(attempt)
		c.logger.Debug("retrying upstream request", "client", c.name, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) delay(attempt int) time.Duration {
	d := c.backoff.Initial << attempt
	if c.backoff.Max > 0 && (d > c.backoff.Max || d <= 0) {
		d = c.backoff.Max
	}
	return d
}
