// Package logrouter classifies log events from the isolated context and hands
// them to one of four host sinks, in the order they arrive.
package logrouter

import (
	"go.uber.org/zap"
)

// Sink receives classified events.
type Sink interface {
	Write(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Write calls f(ev).
func (f SinkFunc) Write(ev Event) { f(ev) }

// Sinks holds one sink per level plus the fallback for unrecognized levels.
type Sinks struct {
	Log      Sink
	Warn     Sink
	Error    Sink
	Info     Sink
	Fallback Sink
}

// Metrics is the subset of monitoring the router reports to.
type Metrics interface {
	RecordLogEvent(level string)
}

// Observer sees every event after it has been written to its sink.
type Observer func(ev Event, level Level)

// Router dispatches events to sinks. It holds no mutable state, so it is as
// safe for concurrent use as the sinks and observer it was given.
type Router struct {
	sinks    Sinks
	metrics  Metrics
	observer Observer
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics records a counter per classified level.
func WithMetrics(m Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithObserver registers a callback invoked after each dispatch.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// New creates a router. Nil sinks discard their events.
func New(sinks Sinks, opts ...Option) *Router {
	r := &Router{sinks: sinks}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies ev and writes it to exactly one sink.
func (r *Router) Route(ev Event) {
	level, _ := ParseLevel(ev.Level)

	var sink Sink
	switch level {
	case LevelLog:
		sink = r.sinks.Log
	case LevelWarn:
		sink = r.sinks.Warn
	case LevelError:
		sink = r.sinks.Error
	case LevelInfo:
		sink = r.sinks.Info
	case LevelUnknown:
		sink = r.sinks.Fallback
	}

	if sink != nil {
		sink.Write(ev)
	}
	if r.metrics != nil {
		r.metrics.RecordLogEvent(level.String())
	}
	if r.observer != nil {
		r.observer(ev, level)
	}
}

// ConsoleSinks returns zap-backed sinks that mirror console.log/warn/error/info
// on the host. Unrecognized levels are logged at warn with the raw level.
func ConsoleSinks(logger *zap.Logger) Sinks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Sinks{
		Log: SinkFunc(func(ev Event) {
			logger.Info("[Renderer Log]: " + ev.Message)
		}),
		Warn: SinkFunc(func(ev Event) {
			logger.Warn("[Renderer Warn]: " + ev.Message)
		}),
		Error: SinkFunc(func(ev Event) {
			logger.Error("[Renderer Error]: " + ev.Message)
		}),
		Info: SinkFunc(func(ev Event) {
			logger.Info("[Renderer Info]: " + ev.Message)
		}),
		Fallback: SinkFunc(func(ev Event) {
			logger.Warn("[Renderer ?]: "+ev.Message, zap.String("level", ev.Level))
		}),
	}
}
