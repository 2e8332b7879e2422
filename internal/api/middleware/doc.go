// Package middleware holds the gin middleware of the control API: CORS
// restricted to loopback origins and per-IP rate limiting.
package middleware
