// Package client provides the HTTP client used to talk to notebook servers.
//
// Built on go-resty/resty with a hashicorp/go-retryablehttp pooled transport:
//   - Retries with backoff on transport errors
//   - Context-based cancellation and per-request timeout
//   - Optional client-side rate limiting (golang.org/x/time/rate)
//   - One circuit breaker per notebook server (internal/infrastructure/resilience)
//   - JSON decoding through bytedance/sonic
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultConfig())
//	resp, err := c.Execute(ctx, baseURL, func(r *resty.Request) (*resty.Response, error) {
//		return r.SetQueryParam("token", token).Get(baseURL + "/api/sessions")
//	})
package client
