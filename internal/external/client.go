// Package external holds the clients for third-party APIs. Every outbound
// call goes through BaseClient, which applies circuit breaking, bounded
// retries and error mapping in one place.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"wellness/internal/types"
)

// RetryPolicy bounds how BaseClient retries 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits short, idempotent provider calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// WaitFunc pauses between attempts. It returns early with ctx's error when
// the request context ends.
type WaitFunc func(ctx context.Context, d time.Duration) error

func waitOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BaseClient is an *http.Client guarded by a circuit breaker.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	policy    RetryPolicy
	userAgent string
	wait      WaitFunc
}

// BaseClientOption configures a BaseClient.
type BaseClientOption func(*BaseClient)

// WithWaitFunc replaces the inter-attempt pause. Tests pass a no-op.
func WithWaitFunc(fn WaitFunc) BaseClientOption {
	return func(c *BaseClient) { c.wait = fn }
}

// WithBreaker shares or customises the circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) { c.breaker = cb }
}

// NewBreaker returns the breaker BaseClient uses by default: it opens after
// five consecutive failures and probes again after 30 seconds.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func NewBaseClient(httpClient *http.Client, name string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &BaseClient{
		client:    httpClient,
		policy:    policy,
		userAgent: userAgent,
		wait:      waitOrDone,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewBreaker(name)
	}
	return c
}

// errRetryable marks responses the breaker should count as failures.
var errRetryable = errors.New("retryable upstream status")

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Do sends req, retrying 429 and 5xx responses up to MaxRetries times.
// Any other response is returned to the caller, who must close its body.
// Exhausted retries, an open breaker, or a transport error yield an
// *types.AppError with an upstream code.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := types.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
		body = b
	}

	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if retryableStatus(r.StatusCode) {
				return r, fmt.Errorf("%w: %d", errRetryable, r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		lastStatus = 0
		var retryAfter string
		if resp != nil {
			lastStatus = resp.StatusCode
			retryAfter = resp.Header.Get("Retry-After")
			_ = resp.Body.Close()
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		if werr := c.wait(ctx, c.backoff(attempt, retryAfter)); werr != nil {
			lastErr = werr
			break
		}
	}

	return nil, mapUpstreamError(lastStatus, lastErr)
}

// backoff honours a numeric or HTTP-date Retry-After, otherwise uses
// exponential backoff with jitter between MinWait and MaxWait.
func (c *BaseClient) backoff(attempt int, retryAfter string) time.Duration {
	clamp := func(d time.Duration) time.Duration {
		if d < c.policy.MinWait {
			return c.policy.MinWait
		}
		if d > c.policy.MaxWait {
			return c.policy.MaxWait
		}
		return d
	}

	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			return clamp(time.Duration(secs) * time.Second)
		}
		if at, err := http.ParseTime(retryAfter); err == nil {
			return clamp(time.Until(at))
		}
	}

	ceiling := c.policy.MinWait << attempt
	if ceiling <= 0 || ceiling > c.policy.MaxWait {
		ceiling = c.policy.MaxWait
	}
	if ceiling <= c.policy.MinWait {
		return c.policy.MinWait
	}
	return c.policy.MinWait + time.Duration(rand.Int64N(int64(ceiling-c.policy.MinWait)))
}

func mapUpstreamError(status int, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker open", err)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
	case status >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream returned %d after retries", status), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	}
}
