// Package probe waits for the page a run is pointed at to start serving.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport, so
// connection errors and 5xx answers are retried with exponential backoff.
// Calls are spaced by an x/time/rate limiter.
//
// Example Usage:
//
//	p := probe.New(probe.DefaultOptions())
//	if err := p.Wait(ctx, "http://127.0.0.1:3000"); err != nil {
//		return err
//	}
package probe
