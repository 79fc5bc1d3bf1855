package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/domain/bridge"
)

// Runtime is the isolated renderer context: a goja VM whose only host
// reach is the bridge surface and the renderer DOM.
type Runtime struct {
	vm      *goja.Runtime
	config  Config
	dom     *DOM
	surface bridge.Surface
	webview Webview
	logger  *zap.Logger

	// mu serializes every entry into the VM
	mu        sync.Mutex
	callCtx   context.Context
	listeners map[*Element]map[string][]goja.Callable
	proxies   map[*Element]*goja.Object

	consoleMu sync.Mutex
	console   []LogEntry
	alerts    []string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithWebview connects the webview element to a navigation target.
func WithWebview(w Webview) Option {
	return func(r *Runtime) { r.webview = w }
}

// WithLogger sets the host-side logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a sandboxed runtime exposing surface as the frozen api global
// and dom as document.
func New(config Config, surface bridge.Surface, dom *DOM, opts ...Option) (*Runtime, error) {
	if surface == nil {
		return nil, errors.New("sandbox: nil surface")
	}
	if dom == nil {
		dom = NewRendererDOM()
	}

	r := &Runtime{
		vm:        goja.New(),
		config:    config,
		dom:       dom,
		surface:   surface,
		logger:    zap.NewNop(),
		callCtx:   context.Background(),
		listeners: make(map[*Element]map[string][]goja.Callable),
		proxies:   make(map[*Element]*goja.Object),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("sandbox")

	if config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	if err := r.installAPI(); err != nil {
		return nil, fmt.Errorf("install api: %w", err)
	}
	if err := r.installDocument(); err != nil {
		return nil, fmt.Errorf("install document: %w", err)
	}
	return r, nil
}

// Execute runs a script with the configured timeout.
func (r *Runtime) Execute(ctx context.Context, script string) (*Result, error) {
	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	var val goja.Value
	err := r.enter(ctx, func() error {
		var err error
		val, err = r.vm.RunString(script)
		return err
	})
	result.Duration = time.Since(start)

	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		result.Error = err
		return result, err
	}

	result.Value = exportValue(val)
	result.DOMChanges = r.dom.GetChanges()
	return result, nil
}

// enter runs fn on the VM under the runtime lock, interrupting it once the
// timeout elapses or ctx ends.
func (r *Runtime) enter(ctx context.Context, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return errors.New("sandbox: runtime closed")
	}

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	r.callCtx = ctx
	err := fn()
	r.callCtx = context.Background()

	close(done)
	<-exited
	r.vm.ClearInterrupt()
	return err
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers are no-ops: the renderer is driven by host events only.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	return r.vm.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0).String()
		r.consoleMu.Lock()
		r.alerts = append(r.alerts, msg)
		r.consoleMu.Unlock()
		r.logger.Info("Renderer alert", zap.String("message", msg))
		return goja.Undefined()
	})
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		msg := strings.Join(parts, " ")

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		r.logger.Debug("Renderer console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// Console returns the console output captured since the last Execute.
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// Alerts returns every alert message shown so far.
func (r *Runtime) Alerts() []string {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]string{}, r.alerts...)
}

// DOM returns the renderer document.
func (r *Runtime) DOM() *DOM {
	return r.dom
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close releases the VM. Further entries fail.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.listeners = nil
	r.proxies = nil
	return nil
}
