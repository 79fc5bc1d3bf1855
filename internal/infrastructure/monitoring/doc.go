/*
Package monitoring provides Prometheus metrics for the harness.

# Overview

Each Metrics value owns a registry, so several harnesses (or tests) can
coexist in one process. Tracked:

- HTTP requests served by the observer/fixture server
- Bridge messages by channel and outcome, renderer log events by level
- Navigation transitions, failures and raw view events
- Time spent in renderer VM entries
- WebSocket observers

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "click")
	err := runtime.Click(ctx, "#reload")
	timer.Stop(err)
*/
package monitoring
