// Package server hosts the HTTP surface of a run: health, prometheus
// metrics, the observer websocket and the static fixture pages.
//
// Routes:
//   - GET /health: status, uptime and running totals
//   - GET /metrics: prometheus exposition
//   - GET /events: websocket observer stream (when a hub is configured)
//   - GET /, GET /fixtures/*path: fixture files (when a store is configured)
//   - GET /api/fixtures: fixture listing
package server
