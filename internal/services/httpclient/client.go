package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound marks a 404 from the upstream API. Callers treat it as empty data.
	ErrNotFound = errors.New("resource not found")
	// ErrMalformed marks a response body that could not be decoded
	ErrMalformed = errors.New("malformed response")
)

// TransientError wraps failures worth retrying (network errors, 429, 5xx)
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient upstream error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Observer receives one callback per HTTP attempt
type Observer func(service, outcome string)

// Options configures a Client
type Options struct {
	Service    string        // label used in logs and metrics
	Delay      time.Duration // fixed pause enforced between requests
	Timeout    time.Duration // per-request timeout
	MaxRetries int           // total attempts for transient errors
	RetryStep  time.Duration // linear backoff step
	UserAgent  string
	Observer   Observer
	HTTPClient *http.Client
}

// Client performs rate-limited JSON GET requests with linear retry
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *logrus.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new rate-limited client
func New(opts Options, logger *logrus.Logger) *Client {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "releasewall/1.0"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		opts:       opts,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetJSON fetches rawURL with params and decodes the body into result.
// Transient failures are retried up to MaxRetries with linear backoff; a 404
// returns ErrNotFound without retrying.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, result interface{}) error {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.do(ctx, endpoint.String(), result)
		if err == nil {
			c.observe("success")
			return nil
		}
		if IsTransient(err) {
			c.observe("transient")
			c.logger.WithError(err).WithFields(logrus.Fields{
				"service": c.opts.Service,
				"path":    endpoint.Path,
				"attempt": attempt,
			}).Warn("Transient API failure")
			return err
		}
		if errors.Is(err, ErrNotFound) {
			c.observe("not_found")
		} else {
			c.observe("error")
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&LinearBackOff{Step: c.opts.RetryStep}, uint64(c.opts.MaxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("%s request %s failed after %d attempt(s): %w", c.opts.Service, endpoint.Path, attempt, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, fullURL string, result interface{}) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransientError{StatusCode: resp.StatusCode, Err: errors.New(string(body))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// throttle blocks until Delay has elapsed since the previous request
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.Delay > 0 && !c.lastRequest.IsZero() {
		if wait := c.opts.Delay - time.Since(c.lastRequest); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *Client) observe(outcome string) {
	if c.opts.Observer != nil {
		c.opts.Observer(c.opts.Service, outcome)
	}
}

// LinearBackOff waits Step, 2*Step, 3*Step, ... between attempts
type LinearBackOff struct {
	Step    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff
func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Step
}

// Reset implements backoff.BackOff
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}
