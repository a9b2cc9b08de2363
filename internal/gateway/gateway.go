// Package gateway talks to the external services that verify platform
// credentials, generate post previews and publish posts. Every call is a
// single attempt; a per-endpoint circuit breaker fails fast while a service
// is down.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"golang.org/x/time/rate"

	config "github.com/maheshrc27/postify/configs"
)

var (
	// ErrUnavailable marks failures of the service itself (network, 5xx,
	// malformed reply, open breaker) as opposed to a definitive answer.
	ErrUnavailable = errors.New("service unavailable")
	// ErrNotConfigured is returned when the endpoint URL is empty.
	ErrNotConfigured = errors.New("service not configured")
)

// StatusError carries a non-2xx reply.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Client struct {
	http        *http.Client
	verifyURL   string
	generateURL string
	publishURL  string
	token       string
	limiter     *rate.Limiter
	breakers    map[string]circuitbreaker.CircuitBreaker[*http.Response]
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func New(cfg config.Services, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	breakerDelay := cfg.BreakerTimeout
	if breakerDelay <= 0 {
		breakerDelay = 15 * time.Second
	}

	c := &Client{
		http:        &http.Client{Timeout: timeout},
		verifyURL:   cfg.VerifyURL,
		generateURL: cfg.GenerateURL,
		publishURL:  cfg.PublishURL,
		token:       cfg.Token,
		limiter:     rate.NewLimiter(limit, 1),
		breakers: map[string]circuitbreaker.CircuitBreaker[*http.Response]{
			endpointVerify:   newBreaker(endpointVerify, breakerDelay),
			endpointGenerate: newBreaker(endpointGenerate, breakerDelay),
			endpointPublish:  newBreaker(endpointPublish, breakerDelay),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const (
	endpointVerify   = "verify"
	endpointGenerate = "generate"
	endpointPublish  = "publish"
)

func newBreaker(name string, delay time.Duration) circuitbreaker.CircuitBreaker[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(delay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode >= 500
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			slog.Warn("circuit breaker state change",
				"endpoint", name,
				"from", stateName(event.OldState),
				"to", stateName(event.NewState))
		}).
		Build()
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerOpen reports whether calls to the endpoint are currently short-circuited.
func (c *Client) BreakerOpen(endpoint string) bool {
	cb, ok := c.breakers[endpoint]
	return ok && cb.IsOpen()
}

// do sends req through the limiter and the endpoint's breaker and returns
// the body of a 2xx reply.
func (c *Client) do(ctx context.Context, endpoint string, newReq func() (*http.Request, error)) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrUnavailable, err)
	}

	resp, err := failsafe.With(c.breakers[endpoint]).WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return c.http.Do(req)
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		slog.Info(err.Error())
		return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: truncate(string(body), 200)})
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
