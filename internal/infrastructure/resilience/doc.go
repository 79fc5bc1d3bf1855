// Package resilience provides a small circuit breaker.
//
// The harness puts one in front of the view's developer-tools request: the
// renderer asks for DevTools on every document click, and a view that cannot
// open them (headless, remote control URL) would otherwise be hit on each
// click.
//
//	Closed --[Threshold failures]--> Open --[Cooldown]--> Half-Open
//	Half-Open --[trial ok]--> Closed
//	Half-Open --[trial fails]--> Open
package resilience
