/*
Package sandbox is the isolated renderer context.

# Overview

Renderer scripts run inside a goja VM that only sees:

  - api: a frozen object with args (the ConfigMap snapshot), log(level,
    message) and requestDevTools(), backed by a bridge.Surface
  - document: the renderer DOM with a webview element and the back,
    forward and reload buttons
  - console, alert and no-op timers

require, process, module and exports are removed. Host effects only happen
through the bridge, so the host observes them in the order they were sent.

# Entering the VM

Every entry (Execute, Click, Dispatch, DispatchWebview) holds the runtime
lock and is bounded by Config.Timeout through vm.Interrupt. Listeners
registered by the script run synchronously inside the entry that fired them.

# Webview

The webview element proxies a Webview (normally the navigation
controller): assigning src navigates, goBack returns false when there is no
history, and getURL, canGoBack, canGoForward read the controller state.
*/
package sandbox
