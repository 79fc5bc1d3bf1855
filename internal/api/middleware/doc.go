// Package middleware provides the gin middleware for the observer HTTP surface.
//
//   - CORS: read-only cross-origin access, WebSocket upgrades allowed
//   - RateLimit: per-IP token bucket, idle clients dropped
//   - GlobalRateLimit: one token bucket for every client
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
