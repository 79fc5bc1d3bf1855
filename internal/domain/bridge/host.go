package bridge

import (
	"context"
	"errors"

	"github.com/mfduar8766/browserautomation/internal/domain/logrouter"
	"go.uber.org/zap"
)

// Router receives log events decoded from the transport.
type Router interface {
	Route(ev logrouter.Event)
}

// DevToolsOpener opens a developer-tools panel for the view.
type DevToolsOpener interface {
	OpenDevTools(ctx context.Context) error
}

// Metrics is the subset of monitoring the host reports to.
type Metrics interface {
	RecordBridgeMessage(channel, outcome string)
}

// Host is the privileged end of the bridge.
type Host struct {
	transport *Transport
	router    Router
	devtools  DevToolsOpener
	logger    *zap.Logger
	metrics   Metrics
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger *zap.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records per-channel message counts.
func WithMetrics(m Metrics) HostOption {
	return func(h *Host) { h.metrics = m }
}

// NewHost creates a host reading from transport. devtools may be nil, in
// which case devtools requests are logged and ignored.
func NewHost(transport *Transport, router Router, devtools DevToolsOpener, opts ...HostOption) *Host {
	h := &Host{
		transport: transport,
		router:    router,
		devtools:  devtools,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("bridge")
	return h
}

// Serve delivers messages until the transport is closed and drained (nil) or
// ctx ends (ctx.Err()).
func (h *Host) Serve(ctx context.Context) error {
	for {
		payload, err := h.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		h.handle(ctx, payload)
	}
}

func (h *Host) handle(ctx context.Context, payload []byte) {
	env, err := Decode(payload)
	if err != nil {
		outcome := "error"
		if IsProtocolDecodeError(err) {
			outcome = "decode_error"
		}
		h.logger.Debug("Dropping undecodable payload", zap.Error(err))
		h.record("invalid", outcome)
		h.router.Route(logrouter.Event{Level: logrouter.LevelError.String(), Message: err.Error()})
		return
	}

	switch env.Channel {
	case ChannelLog:
		h.record(string(env.Channel), "ok")
		h.router.Route(logrouter.Event{Level: env.Level, Message: env.Message})
	case ChannelDevTools:
		if h.devtools == nil {
			h.logger.Warn("DevTools requested but no view can open them")
			h.record(string(env.Channel), "unavailable")
			return
		}
		if err := h.devtools.OpenDevTools(ctx); err != nil {
			h.logger.Warn("Failed to open DevTools", zap.Error(err))
			h.record(string(env.Channel), "error")
			return
		}
		h.record(string(env.Channel), "ok")
	}
}

func (h *Host) record(channel, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordBridgeMessage(channel, outcome)
	}
}
