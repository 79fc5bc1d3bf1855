package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mfduar8766/browserautomation/internal/api/ws"
	"github.com/mfduar8766/browserautomation/internal/domain/argscodec"
	"github.com/mfduar8766/browserautomation/internal/domain/bridge"
	"github.com/mfduar8766/browserautomation/internal/domain/logrouter"
	"github.com/mfduar8766/browserautomation/internal/domain/navigation"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/resilience"
	"github.com/mfduar8766/browserautomation/internal/providers/browser/sandbox"
	"github.com/mfduar8766/browserautomation/internal/providers/browser/view"
	"github.com/mfduar8766/browserautomation/internal/providers/probe"
)

// errQuit ends the run group when the view goes away.
var errQuit = errors.New("view closed")

// View is the embedded browsing surface a run drives.
type View interface {
	navigation.View
	bridge.DevToolsOpener
	Next(ctx context.Context) (view.Event, error)
}

// Options holds everything one run needs. Args is the ConfigMap captured at
// process entry; it is serialized once and handed to the isolated context.
type Options struct {
	Args argscodec.ConfigMap
	View View

	// Transport carries bridge payloads. Views that deliver page messages
	// (the rod binding) must write into the same transport.
	Transport *bridge.Transport

	// Script and Markup override the embedded renderer.
	Script string
	Markup string

	ScriptTimeout time.Duration

	// DevTools configures the breaker around the view's DevTools requests.
	// Zero values take resilience.DefaultSettings.
	DevTools resilience.Settings

	// Probe, when set, waits for an http(s) url argument to answer before
	// the renderer script runs.
	Probe *probe.Client

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Hub     *ws.Hub
}

// Harness wires the bridge, log router, navigation controller and isolated
// context around one view.
type Harness struct {
	args       argscodec.ConfigMap
	view       View
	transport  *bridge.Transport
	host       *bridge.Host
	router     *logrouter.Router
	controller *navigation.Controller
	runtime    *sandbox.Runtime
	script     string
	probe      *probe.Client
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// New builds a harness. Nothing runs until Run.
func New(opts Options) (*Harness, error) {
	if opts.View == nil {
		return nil, errors.New("harness: nil view")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = bridge.NewTransport()
	}

	h := &Harness{
		args:      opts.Args,
		view:      opts.View,
		transport: transport,
		script:    opts.Script,
		probe:     opts.Probe,
		logger:    logger.Named("harness"),
		metrics:   opts.Metrics,
	}
	if h.script == "" {
		h.script = DefaultScript()
	}

	var routerOpts []logrouter.Option
	if opts.Metrics != nil {
		routerOpts = append(routerOpts, logrouter.WithMetrics(opts.Metrics))
	}
	if opts.Hub != nil {
		routerOpts = append(routerOpts, logrouter.WithObserver(opts.Hub.LogObserver()))
	}
	h.router = logrouter.New(logrouter.ConsoleSinks(logger.Named("renderer")), routerOpts...)

	var hostOpts []bridge.HostOption
	hostOpts = append(hostOpts, bridge.WithLogger(logger))
	if opts.Metrics != nil {
		hostOpts = append(hostOpts, bridge.WithMetrics(opts.Metrics))
	}
	devtools := newDevToolsGuard(opts.View, opts.DevTools, h.logger)
	h.host = bridge.NewHost(transport, h.router, devtools, hostOpts...)

	navOpts := []navigation.Option{
		navigation.WithLogger(logger),
		navigation.WithFailureHandler(h.forwardFailure),
	}
	if opts.Metrics != nil {
		metrics := opts.Metrics
		navOpts = append(navOpts, navigation.WithObserver(func(from, to navigation.State) {
			metrics.RecordNavigation(from.Status.String(), to.Status.String())
		}))
	}
	if opts.Hub != nil {
		navOpts = append(navOpts, navigation.WithObserver(opts.Hub.NavigationObserver()))
	}
	h.controller = navigation.New(opts.View, navOpts...)

	markup := opts.Markup
	if markup == "" {
		markup = DefaultMarkup()
	}
	dom, err := sandbox.ParseRendererDOM(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("renderer markup: %w", err)
	}

	serialized, err := argscodec.Serialize(opts.Args)
	if err != nil {
		return nil, fmt.Errorf("serialize args: %w", err)
	}

	cfg := sandbox.DefaultConfig()
	if opts.ScriptTimeout > 0 {
		cfg.Timeout = opts.ScriptTimeout
	}
	h.runtime, err = sandbox.New(cfg, bridge.Open(serialized, transport), dom,
		sandbox.WithWebview(h.controller),
		sandbox.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	return h, nil
}

// Controller returns the navigation controller.
func (h *Harness) Controller() *navigation.Controller {
	return h.controller
}

// Runtime returns the isolated context.
func (h *Harness) Runtime() *sandbox.Runtime {
	return h.runtime
}

// Run serves the bridge, pumps view events and boots the renderer. It
// returns nil when the view closes or ctx is cancelled, after delivering
// every bridge message already sent.
func (h *Harness) Run(ctx context.Context) error {
	defer h.runtime.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.host.Serve(gctx) })
	g.Go(func() error { return h.pump(gctx) })
	g.Go(func() error { return h.boot(gctx) })

	err := g.Wait()

	// Flush whatever the renderer sent before shutdown.
	h.transport.Close()
	h.logger.Debug("Flushing bridge", zap.Int("pending", h.transport.Pending()))
	if flushErr := h.host.Serve(context.Background()); flushErr != nil {
		h.logger.Warn("Failed to flush bridge", zap.Error(flushErr))
	}

	switch {
	case err == nil, errors.Is(err, errQuit):
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		h.logger.Info("Run cancelled")
		return nil
	default:
		return err
	}
}

func (h *Harness) boot(ctx context.Context) error {
	if url, ok := h.args.Lookup("url"); ok && h.probe != nil && probe.Probeable(url) {
		if err := h.probe.Wait(ctx, url); err != nil {
			return fmt.Errorf("wait for %s: %w", url, err)
		}
	}

	timer := monitoring.NewTimer(h.metrics, "script")
	_, err := h.runtime.Execute(ctx, h.script)
	timer.Stop(err)
	if err != nil {
		return fmt.Errorf("renderer script: %w", err)
	}

	timer = monitoring.NewTimer(h.metrics, "DOMContentLoaded")
	err = h.runtime.Dispatch(ctx, "DOMContentLoaded")
	timer.Stop(err)
	if err != nil {
		h.reportListenerError("DOMContentLoaded", err)
	}

	h.logger.Info("Renderer ready", zap.Int("args", h.args.Len()))
	return nil
}

func (h *Harness) pump(ctx context.Context) error {
	for {
		ev, err := h.view.Next(ctx)
		if err != nil {
			if errors.Is(err, view.ErrViewClosed) {
				return errQuit
			}
			return err
		}
		if h.metrics != nil {
			h.metrics.RecordViewEvent(ev.Kind.String())
		}

		if ev.Kind == view.EventClosed {
			h.logger.Info("View closed, quitting")
			return errQuit
		}

		h.controller.HandleEvent(ctx, ev)

		timer := monitoring.NewTimer(h.metrics, ev.Kind.String())
		err = h.runtime.DispatchWebview(ctx, ev)
		timer.Stop(err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.reportListenerError(ev.Kind.String(), err)
		}
	}
}

// forwardFailure turns a failed navigation into an error-level log event.
func (h *Harness) forwardFailure(state navigation.State, url string) {
	if url == "" {
		url = state.URL
	}
	h.post(logrouter.LevelError, fmt.Sprintf("Webview failed to load %s: %s", url, state.LastError))
}

func (h *Harness) reportListenerError(event string, err error) {
	h.post(logrouter.LevelError, fmt.Sprintf("%s listener failed: %v", event, err))
}

// post queues a host-originated log event on the bridge behind any renderer
// messages already sent. Once the transport is closed it routes directly.
func (h *Harness) post(level logrouter.Level, message string) {
	payload, err := bridge.Encode(bridge.Envelope{Channel: bridge.ChannelLog, Level: level.String(), Message: message})
	if err == nil {
		if err = h.transport.Send(payload); err == nil {
			return
		}
	}
	h.router.Route(logrouter.Event{Level: level.String(), Message: message})
}
