package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// CallPolicy governs every call to an external provider: a token bucket shared
// by all calls, a per-attempt timeout and bounded retry of transient failures.
type CallPolicy struct {
	Timeout    time.Duration
	MaxRetries int
	Limiter    *rate.Limiter
	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCallPolicy creates a policy allowing rps sustained calls with the given burst.
func NewCallPolicy(timeout time.Duration, maxRetries int, rps float64, burst int) *CallPolicy {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &CallPolicy{
		Timeout:    timeout,
		MaxRetries: maxRetries,
		Limiter:    limiter,
	}
}

// Do runs fn until it succeeds, fails permanently, or retries are exhausted.
func (p *CallPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if p.Limiter != nil {
			if werr := p.Limiter.Wait(ctx); werr != nil {
				return fmt.Errorf("%s: rate limiter: %w", op, werr)
			}
		}

		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == p.MaxRetries {
			break
		}

		delay := retryDelay(attempt)
		log.Printf("PROVIDER: %s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, p.MaxRetries+1, delay, err)
		if serr := p.wait(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (p *CallPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (p *CallPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay is an exponential backoff starting at 200ms, capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

// HTTPStatusError is returned by the hand-written HTTP provider clients.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: timeouts, rate limiting
// and server-side failures. Everything else, including bad credentials and
// malformed input, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return transientStatus(genaiErr.Code)
	}
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return transientStatus(googleErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
