package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Default HTTP source settings.
const (
	defaultTimeout         = 10 * time.Second
	defaultMaxRetries      = 3
	defaultBackoffInitial  = 200 * time.Millisecond
	defaultBackoffMax      = 2 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

var (
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackoff sets the retry budget and exponential backoff bounds.
func WithBackoff(maxRetries int, initial, maxInterval time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if initial > 0 {
			s.backoffInitial = initial
		}
		if maxInterval > 0 {
			s.backoffMax = maxInterval
		}
	}
}

// WithBreaker sets the consecutive failures that open the circuit and how
// long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if failures > 0 {
			s.breakerFailures = failures
		}
		if openFor > 0 {
			s.breakerTimeout = openFor
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logger.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.log = l
		}
	}
}

// HTTPSource fetches artifacts from a base URL with retries, exponential
// backoff and a circuit breaker.
type HTTPSource struct {
	baseURL         string
	client          *http.Client
	timeout         time.Duration
	maxRetries      int
	backoffInitial  time.Duration
	backoffMax      time.Duration
	breakerFailures uint32
	breakerTimeout  time.Duration
	cb              *gobreaker.CircuitBreaker
	log             logger.Logger
}

// NewHTTPSource creates a source for baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) (*HTTPSource, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidSetup, baseURL)
	}
	s := &HTTPSource{
		baseURL:         baseURL,
		timeout:         defaultTimeout,
		maxRetries:      defaultMaxRetries,
		backoffInitial:  defaultBackoffInitial,
		backoffMax:      defaultBackoffMax,
		breakerFailures: defaultBreakerFailures,
		breakerTimeout:  defaultBreakerTimeout,
		log:             logger.Get().Named("artifacts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	failures := s.breakerFailures
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "artifacts",
		MaxRequests: 1,
		Timeout:     s.breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	return s, nil
}

// Describe returns the URL of an artifact.
func (s *HTTPSource) Describe(name string) string {
	return s.baseURL + "/" + strings.TrimLeft(name, "/")
}

// Open downloads an artifact. The returned body must be closed by the caller.
func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	url := s.Describe(clean)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := s.fetch(ctx, url)
		if err == nil {
			if resp.StatusCode == http.StatusNotFound {
				_ = resp.Body.Close()
				metrics.RecordArtifactFetch(config.SourceHTTP, "not_found")
				return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
			}
			metrics.RecordArtifactFetch(config.SourceHTTP, "ok")
			return resp.Body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordArtifactFetch(config.SourceHTTP, "circuit_open")
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		lastErr = err
		if attempt >= s.maxRetries {
			break
		}

		delay := s.backoffInitial * time.Duration(math.Pow(2, float64(attempt)))
		if delay > s.backoffMax {
			delay = s.backoffMax
		}
		s.log.Debug(ctx, "retrying artifact fetch",
			logger.String("url", url),
			logger.Int("attempt", attempt+1),
			logger.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	metrics.RecordArtifactFetch(config.SourceHTTP, "error")
	return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, url, lastErr)
}

// fetch performs one request through the breaker. Only transport errors
// and 5xx responses count as breaker failures; a 404 is an answer.
func (s *HTTPSource) fetch(ctx context.Context, url string) (*http.Response, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resp, nil
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
