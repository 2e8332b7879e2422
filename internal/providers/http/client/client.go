package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Config defines client behavior
type Config struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RateLimit caps requests per second; zero or less means unlimited.
	RateLimit float64
	UserAgent string
}

// DefaultConfig returns settings suited to a notebook server on localhost.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RetryCount:   2,
		RetryWait:    250 * time.Millisecond,
		RetryMaxWait: 2 * time.Second,
		UserAgent:    "griffin-notebook/1.0",
	}
}

// Client wraps resty with rate limiting and per-server circuit breakers
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Group
	Mu       sync.RWMutex
}

// NewClient creates an HTTP client for notebook REST calls
func NewClient(cfg Config) *Client {
	// Pooled transport from retryablehttp (cleanhttp defaults).
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTransport(retryClient.HTTPClient.Transport)
	if cfg.UserAgent != "" {
		restyClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsFailure: isTransportFailure,
	})

	c := &Client{
		Resty:    restyClient,
		Limiter:  rate.NewLimiter(rate.Inf, 0),
		Breakers: breakers,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetTimeout configures request timeout
func (c *Client) SetTimeout(duration time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetTimeout(duration)
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, minWait, maxWait time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetRetryCount(maxRetries).
		SetRetryWaitTime(minWait).
		SetRetryMaxWaitTime(maxWait)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Request creates a new request after waiting for the rate limiter
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Execute runs fn through the breaker for server. A non-nil error means the
// request never produced an HTTP response; status codes are left to the caller.
func (c *Client) Execute(ctx context.Context, server string, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var resp *resty.Response

	err := c.Breakers.Get(server).Do(func() error {
		req, err := c.Request(ctx)
		if err != nil {
			return err
		}
		resp, err = fn(req)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("notebook server %s unavailable: %w", server, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Forget drops breaker state for a server that has been shut down.
func (c *Client) Forget(server string) {
	c.Breakers.Remove(server)
}

func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	// Caller gave up; says nothing about the server.
	return !errors.Is(err, context.Canceled)
}
