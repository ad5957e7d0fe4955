package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

func defaultHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errNoAPIKey      = errors.New("api key is not configured")
	errEmptyForecast = errors.New("provider returned no forecast periods")
)

// getJSON performs a resilient GET and decodes the body into v.
func getJSON(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	url string,
	v any,
) error {
	resp, err := doRequestWithResilience(ctx, cfg, cb, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// delay is the wait before retry n (0-based): InitialInterval doubled per
// attempt, capped at MaxInterval when set.
func (b BackoffConfig) delay(n int) time.Duration {
	d := b.InitialInterval * time.Duration(math.Pow(2, float64(n)))
	if b.MaxInterval > 0 && d > b.MaxInterval {
		d = b.MaxInterval
	}
	return d
}

// rateLimitError carries the provider's Retry-After hint.
type rateLimitError struct {
	after time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%v, retry after %s", errRateLimited, e.after)
}

func (e *rateLimitError) Unwrap() error { return errRateLimited }

// doRequestWithResilience executes the HTTP request through the circuit
// breaker, retrying transport failures, 429s and 5xx with exponential
// backoff. A 429 Retry-After longer than the backoff step is honoured.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, err := cfg.Client.Do(req.WithContext(ctx))
			if err != nil {
				return nil, err
			}
			if err := classify(resp.StatusCode); err != nil {
				if errors.Is(err, errRateLimited) {
					err = &rateLimitError{after: retryAfter(resp.Header.Get("Retry-After"))}
				}
				// Drain so the connection can be reused.
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
				resp.Body.Close()
				return nil, err
			}
			return resp, nil
		})
		switch {
		case err == nil:
			return result.(*http.Response), nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, errUnexpected), attempt >= cfg.Backoff.MaxRetries:
			// Client errors other than 429 will not change on retry.
			return nil, err
		}

		wait := cfg.Backoff.delay(attempt)
		var rl *rateLimitError
		if errors.As(err, &rl) && rl.after > wait {
			wait = rl.after
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryAfter parses a Retry-After header given in seconds. HTTP dates and
// garbage count as no hint.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func classify(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return errRateLimited
	case status >= 500:
		return errServerError
	case status < 200 || status >= 300:
		return fmt.Errorf("%w: %d", errUnexpected, status)
	}
	return nil
}
