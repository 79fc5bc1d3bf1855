// Package ws streams run observations to WebSocket clients.
//
// Message Types (Server → Client):
//   - system: sent once on connect, carries the observer id
//   - log: a renderer log event after routing
//   - navigation: a controller state transition with from/to snapshots
//   - pong: reply to ping
//   - error: unknown or malformed client message
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Example Usage:
//
//	hub := ws.NewHub(ws.WithLogger(logger), ws.WithMetrics(metrics))
//	router.GET("/events", hub.Handle)
package ws
