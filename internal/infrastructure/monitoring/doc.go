/*
Package monitoring provides Prometheus metrics for notebookd.

# Overview

Each Metrics value owns a private prometheus.Registry, exposed through
Handler() on the control API's /metrics route.

# Metrics

- Control API requests (count, latency by route template)
- Notebook servers (active, start attempts by result, start latency, exits)
- Kernel lookups and shutdowns by outcome
- Notebook REST call latency by endpoint
- Stale async results dropped
- Registered sessions, published events, event stream connections

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "sessions")
	defer timer.Stop()
*/
package monitoring
