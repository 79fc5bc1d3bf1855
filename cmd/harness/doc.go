// Command harness runs the browser automation harness.
//
// Usage:
//
//	# open the configured view and load a page
//	harness run --url=https://example.com
//
//	# serve local fixture pages
//	harness serve --dir web/fixtures --addr 127.0.0.1:3000
//
// Arguments after "run" are launch arguments, not flags: they are parsed
// into the renderer's read-only args map. Host settings come from HARNESS_*
// environment variables (see internal/infrastructure/config).
//
// The process exits 1 when the preload script is missing, the view cannot
// be opened or the renderer script fails.
//
// Signals:
//   - SIGINT, SIGTERM: close the view and shut down
package main
