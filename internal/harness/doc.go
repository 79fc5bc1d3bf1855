// Package harness runs one automation session: it connects the isolated
// renderer context to the host through the bridge, routes renderer logs,
// and drives the view through the navigation controller.
//
// Run starts three concurrent parts under one errgroup:
//   - the bridge host, draining renderer messages in order
//   - the view event pump, feeding the controller and the renderer's
//     webview listeners
//   - the renderer boot: optional readiness probe, renderer script,
//     DOMContentLoaded
//
// The run ends when the view closes or the context is cancelled.
package harness
