// Package navigation tracks the load state of the embedded view and mediates
// back/forward/reload requests against its history.
//
// The controller is driven by two inputs: requests (Navigate, Reload, GoBack,
// GoForward) and view events (HandleEvent). Requests put the controller into
// Loading immediately; it only leaves Loading when the matching event
// arrives. Events that belong to a navigation older than the latest request
// are stale and ignored, and so are load results that arrive while Idle:
// a load can only finish or fail after it has started.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mfduar8766/browserautomation/internal/providers/browser/view"
	"go.uber.org/zap"
)

// ErrEmptyURL is returned by Navigate for an empty URL.
var ErrEmptyURL = errors.New("navigation: empty url")

// View is the part of a view the controller drives.
type View interface {
	Load(ctx context.Context, url string) (view.NavigationID, error)
	Reload(ctx context.Context) (view.NavigationID, error)
	GoBack(ctx context.Context) (view.NavigationID, error)
	GoForward(ctx context.Context) (view.NavigationID, error)
	History(ctx context.Context) (view.History, error)
}

// FailureHandler is called, outside the controller lock, after a navigation
// failure has been recorded.
type FailureHandler func(state State, url string)

// Observer is called, outside the controller lock, after every state change.
type Observer func(from, to State)

// Controller is the navigation state machine for one view.
type Controller struct {
	mu      sync.Mutex
	view    View
	state   State
	pending view.NavigationID

	onFailure FailureHandler
	observers []Observer
	logger    *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithFailureHandler registers the failure callback.
func WithFailureHandler(h FailureHandler) Option {
	return func(c *Controller) { c.onFailure = h }
}

// WithObserver registers a state-change callback. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a controller in the Idle state.
func New(v View, opts ...Option) *Controller {
	c := &Controller{
		view:   v,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("navigation")
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Navigate loads url. The controller enters Loading before the view is asked
// to load; a view error records Failed.
func (c *Controller) Navigate(ctx context.Context, url string) error {
	if url == "" {
		return ErrEmptyURL
	}

	c.mu.Lock()
	from := c.state
	c.state.Status = StatusLoading
	c.state.URL = url
	id, err := c.view.Load(ctx, url)
	if err != nil {
		c.failLocked(url, err.Error())
		to := c.state
		c.mu.Unlock()
		c.notify(from, to)
		c.reportFailure(to, url)
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	c.trackLocked(id)
	to := c.state
	c.mu.Unlock()

	c.notify(from, to)
	return nil
}

// Reload re-enters Loading from any state.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	from := c.state
	c.state.Status = StatusLoading
	id, err := c.view.Reload(ctx)
	if err != nil {
		c.failLocked(c.state.URL, err.Error())
		to := c.state
		c.mu.Unlock()
		c.notify(from, to)
		c.reportFailure(to, to.URL)
		return fmt.Errorf("reload: %w", err)
	}
	c.trackLocked(id)
	to := c.state
	c.mu.Unlock()

	c.notify(from, to)
	return nil
}

// GoBack moves back in history when canGoBack is set. Otherwise it returns
// OutcomeNoHistory and leaves the state untouched.
func (c *Controller) GoBack(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if !c.state.CanGoBack {
		c.mu.Unlock()
		return OutcomeNoHistory, nil
	}
	c.mu.Unlock()

	return c.step(ctx, c.view.GoBack)
}

// GoForward asks the view to move forward. It is always permitted; when the
// view has nothing to move to the outcome is OutcomeNoHistory.
func (c *Controller) GoForward(ctx context.Context) (Outcome, error) {
	return c.step(ctx, c.view.GoForward)
}

func (c *Controller) step(ctx context.Context, move func(context.Context) (view.NavigationID, error)) (Outcome, error) {
	c.mu.Lock()
	from := c.state
	id, err := move(ctx)
	if err != nil {
		c.mu.Unlock()
		return OutcomeNoHistory, err
	}
	if id == 0 {
		c.mu.Unlock()
		return OutcomeNoHistory, nil
	}
	c.state.Status = StatusLoading
	c.trackLocked(id)
	to := c.state
	c.mu.Unlock()

	c.notify(from, to)
	return OutcomeNavigated, nil
}

// HandleEvent applies a view lifecycle event.
func (c *Controller) HandleEvent(ctx context.Context, ev view.Event) {
	if ev.Kind == view.EventClosed {
		return
	}

	c.mu.Lock()
	if ev.ID != 0 && ev.ID < c.pending {
		c.mu.Unlock()
		c.logger.Debug("Ignoring event for superseded navigation",
			zap.Stringer("event", ev.Kind),
			zap.Uint64("id", uint64(ev.ID)),
			zap.Uint64("pending", uint64(c.pending)),
		)
		return
	}
	if c.state.Status == StatusIdle && (ev.Kind == view.EventDidFinishLoad || ev.Kind == view.EventDidFailLoad) {
		c.mu.Unlock()
		c.logger.Debug("Ignoring load result before any navigation", zap.Stringer("event", ev.Kind))
		return
	}
	c.trackLocked(ev.ID)

	from := c.state
	failed := false
	switch ev.Kind {
	case view.EventDidStartLoad:
		c.state.Status = StatusLoading
		if ev.URL != "" {
			c.state.URL = ev.URL
		}
	case view.EventDidFinishLoad:
		c.state.Status = StatusLoaded
		c.state.LastError = ""
		if ev.URL != "" {
			c.state.URL = ev.URL
		}
		c.refreshHistoryLocked(ctx)
	case view.EventDidFailLoad:
		c.failLocked(ev.URL, describeFailure(ev))
		failed = true
	}
	to := c.state
	c.mu.Unlock()

	c.notify(from, to)
	if failed {
		c.reportFailure(to, ev.URL)
	}
}

func (c *Controller) trackLocked(id view.NavigationID) {
	if id > c.pending {
		c.pending = id
	}
}

func (c *Controller) failLocked(url, reason string) {
	c.state.Status = StatusFailed
	c.state.LastError = reason
	if url != "" {
		c.state.URL = url
	}
}

func (c *Controller) refreshHistoryLocked(ctx context.Context) {
	h, err := c.view.History(ctx)
	if err != nil {
		c.logger.Warn("Failed to read view history", zap.Error(err))
		return
	}
	c.state.CanGoBack = h.CanGoBack()
	c.state.CanGoForward = h.CanGoForward()
}

func (c *Controller) notify(from, to State) {
	if from == to {
		return
	}
	c.logger.Debug("Navigation state changed",
		zap.Stringer("from", from.Status),
		zap.Stringer("to", to.Status),
		zap.String("url", to.URL),
	)
	for _, o := range c.observers {
		o(from, to)
	}
}

func (c *Controller) reportFailure(state State, url string) {
	if c.onFailure != nil {
		c.onFailure(state, url)
	}
}

func describeFailure(ev view.Event) string {
	switch {
	case ev.ErrorDescription != "" && ev.ErrorCode != 0:
		return fmt.Sprintf("%s (%d)", ev.ErrorDescription, ev.ErrorCode)
	case ev.ErrorDescription != "":
		return ev.ErrorDescription
	case ev.ErrorCode != 0:
		return fmt.Sprintf("load failed (%d)", ev.ErrorCode)
	default:
		return "load failed"
	}
}
