/*
Package view provides the embedded browsing surfaces the harness drives.

A view loads URLs, keeps session history, and reports its lifecycle as
asynchronous events:

	did-start-load   a navigation began
	did-finish-load  the main document finished loading
	did-fail-load    the navigation failed (ErrorCode, ErrorDescription set)
	closed           the surface went away

Calls like Load return as soon as the navigation is issued; completion is only
ever observed through Next. Two implementations exist:

  - Rod drives a real Chromium target over the DevTools protocol.
  - Memory simulates a view in-process for dry runs and tests.
*/
package view
