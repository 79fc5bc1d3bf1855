package view

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/shared/mailbox"
)

// BindingName is the page global the preload script posts bridge envelopes to.
const BindingName = "harnessBridge"

// RodOptions configures a Chromium-backed view.
type RodOptions struct {
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
	Bin        string
	Headless   bool
	Width      int
	Height     int

	// NavTimeout bounds the CDP navigate call, not the page load.
	NavTimeout time.Duration

	// Preload is the preload script source. It runs in every new document
	// as the body of a function receiving the serialized args.
	Preload        string
	SerializedArgs string

	// OnMessage receives every payload the page posts to BindingName.
	OnMessage func(payload []byte)

	Logger *zap.Logger
}

// Rod is a view backed by a Chromium page driven over CDP.
type Rod struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	control  string
	timeout  time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	nextID    NavigationID
	unclaimed NavigationID
	loaders   map[proto.NetworkLoaderID]NavigationID
	url       string
	closed    bool
	ended     bool

	events *mailbox.Mailbox[Event]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OpenRod launches (or connects to) a browser, opens the page, installs the
// preload script and starts the CDP event pumps.
func OpenRod(ctx context.Context, opts RodOptions) (*Rod, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("view.rod")

	r := &Rod{
		control: opts.ControlURL,
		timeout: opts.NavTimeout,
		logger:  logger,
		loaders: make(map[proto.NetworkLoaderID]NavigationID),
		events:  mailbox.New[Event](),
	}

	if r.control == "" {
		width, height := opts.Width, opts.Height
		if width <= 0 {
			width = 800
		}
		if height <= 0 {
			height = 800
		}
		l := launcher.New().
			Headless(opts.Headless).
			Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", width, height)).
			Set(flags.Flag("enable-logging"))
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		control, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		r.launcher = l
		r.control = control
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	browser := rod.New().ControlURL(r.control).Context(pumpCtx)
	if err := browser.Connect(); err != nil {
		r.teardown()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	r.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.teardown()
		return nil, fmt.Errorf("open page: %w", err)
	}
	r.page = page

	if err := r.install(opts); err != nil {
		r.teardown()
		return nil, err
	}

	logger.Info("Browser view ready",
		zap.String("control_url", r.control),
		zap.String("target", string(page.TargetID)),
	)
	return r, nil
}

func (r *Rod) install(opts RodOptions) error {
	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(r.page); err != nil {
		return fmt.Errorf("enable lifecycle events: %w", err)
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(r.browser); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	if opts.OnMessage != nil {
		if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(r.page); err != nil {
			return fmt.Errorf("add bridge binding: %w", err)
		}
	}

	if opts.Preload != "" {
		script, err := preloadScript(opts.Preload, opts.SerializedArgs)
		if err != nil {
			return err
		}
		if _, err := r.page.EvalOnNewDocument(script); err != nil {
			return fmt.Errorf("install preload: %w", err)
		}
	}

	wait := r.page.EachEvent(
		func(ev *proto.RuntimeBindingCalled) {
			if ev.Name == BindingName && opts.OnMessage != nil {
				opts.OnMessage([]byte(ev.Payload))
			}
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame == nil || ev.Frame.ParentID != "" {
				return
			}
			r.mu.Lock()
			r.url = ev.Frame.URL
			r.mu.Unlock()
		},
		func(ev *proto.PageLifecycleEvent) {
			if ev.FrameID != r.page.FrameID {
				return
			}
			r.onLifecycle(ev)
		},
	)
	closed := r.browser.EachEvent(func(ev *proto.TargetTargetDestroyed) bool {
		if ev.TargetID != r.page.TargetID {
			return false
		}
		r.end()
		return true
	})

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		wait()
	}()
	go func() {
		defer r.wg.Done()
		closed()
	}()
	return nil
}

func (r *Rod) onLifecycle(ev *proto.PageLifecycleEvent) {
	r.mu.Lock()
	id := r.claimLocked(ev.LoaderID)
	current := r.url
	r.mu.Unlock()

	switch ev.Name {
	case "init":
		r.emit(Event{Kind: EventDidStartLoad, ID: id})
	case "load":
		r.emit(Event{Kind: EventDidFinishLoad, ID: id, URL: current})
	}
}

// claimLocked attributes a CDP loader to a navigation. Loaders we did not
// start take the oldest unclaimed request, if any.
func (r *Rod) claimLocked(loader proto.NetworkLoaderID) NavigationID {
	if id, ok := r.loaders[loader]; ok {
		return id
	}
	if r.unclaimed == 0 {
		return 0
	}
	id := r.unclaimed
	r.unclaimed = 0
	r.loaders[loader] = id
	return id
}

func (r *Rod) begin() (NavigationID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrViewClosed
	}
	r.nextID++
	r.unclaimed = r.nextID
	return r.nextID, nil
}

// Load navigates the page. A navigation the browser rejects is reported as
// a did-fail-load event, not as an error.
func (r *Rod) Load(ctx context.Context, target string) (NavigationID, error) {
	id, err := r.begin()
	if err != nil {
		return 0, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := proto.PageNavigate{URL: target}.Call(r.page.Context(ctx))
	if err != nil {
		return 0, fmt.Errorf("navigate: %w", err)
	}

	r.mu.Lock()
	if res.LoaderID != "" {
		r.loaders[res.LoaderID] = id
	}
	if r.unclaimed == id {
		r.unclaimed = 0
	}
	r.mu.Unlock()

	if res.ErrorText != "" {
		r.emit(Event{Kind: EventDidFailLoad, ID: id, URL: target, ErrorDescription: res.ErrorText})
	}
	return id, nil
}

// Reload reloads the current document.
func (r *Rod) Reload(ctx context.Context) (NavigationID, error) {
	id, err := r.begin()
	if err != nil {
		return 0, err
	}
	if err := (proto.PageReload{}).Call(r.page.Context(ctx)); err != nil {
		return 0, fmt.Errorf("reload: %w", err)
	}
	return id, nil
}

// GoBack navigates to the previous history entry, returning id 0 when
// there is none.
func (r *Rod) GoBack(ctx context.Context) (NavigationID, error) {
	return r.step(ctx, -1)
}

// GoForward navigates to the next history entry, returning id 0 when there
// is none.
func (r *Rod) GoForward(ctx context.Context) (NavigationID, error) {
	return r.step(ctx, 1)
}

func (r *Rod) step(ctx context.Context, delta int) (NavigationID, error) {
	page := r.page.Context(ctx)
	res, err := proto.PageGetNavigationHistory{}.Call(page)
	if err != nil {
		return 0, fmt.Errorf("read history: %w", err)
	}
	target := res.CurrentIndex + delta
	if target < 0 || target >= len(res.Entries) {
		return 0, nil
	}

	id, err := r.begin()
	if err != nil {
		return 0, err
	}
	if err := (proto.PageNavigateToHistoryEntry{EntryID: res.Entries[target].ID}).Call(page); err != nil {
		return 0, fmt.Errorf("navigate to history entry: %w", err)
	}
	return id, nil
}

// History returns the page's session history.
func (r *Rod) History(ctx context.Context) (History, error) {
	res, err := proto.PageGetNavigationHistory{}.Call(r.page.Context(ctx))
	if err != nil {
		return History{}, fmt.Errorf("read history: %w", err)
	}
	h := History{Index: res.CurrentIndex, Entries: make([]string, 0, len(res.Entries))}
	for _, e := range res.Entries {
		h.Entries = append(h.Entries, e.URL)
	}
	return h, nil
}

// URL returns the last committed main-frame URL.
func (r *Rod) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// OpenDevTools opens the DevTools frontend for the page in a new tab.
func (r *Rod) OpenDevTools(ctx context.Context) error {
	frontend, err := devToolsURL(r.control, string(r.page.TargetID))
	if err != nil {
		return err
	}
	if _, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: frontend}); err != nil {
		return fmt.Errorf("open devtools: %w", err)
	}
	return nil
}

// Next returns the next lifecycle event.
func (r *Rod) Next(ctx context.Context) (Event, error) {
	ev, err := r.events.Pop(ctx)
	if errors.Is(err, mailbox.ErrClosed) {
		return Event{}, ErrViewClosed
	}
	return ev, err
}

// Close shuts the browser down. The event stream ends with a closed event.
func (r *Rod) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	r.teardown()
	r.end()
	r.events.Close()
	return err
}

// end emits the closed event once.
func (r *Rod) end() {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	r.mu.Unlock()
	r.emit(Event{Kind: EventClosed})
}

func (r *Rod) teardown() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
	}
}

func (r *Rod) emit(ev Event) {
	r.events.Push(ev)
}

// preloadScript wraps the preload source so it runs with the serialized args
// as its only parameter.
func preloadScript(source, serializedArgs string) (string, error) {
	arg, err := sonic.ConfigStd.MarshalToString(serializedArgs)
	if err != nil {
		return "", fmt.Errorf("encode preload args: %w", err)
	}
	return fmt.Sprintf("(function (serializedArgs) {\n%s\n})(%s);", source, arg), nil
}

// devToolsURL builds the inspector URL served by the browser's own debugging
// endpoint for the given target.
func devToolsURL(controlURL, targetID string) (string, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return "", fmt.Errorf("parse control url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("control url %q has no host", controlURL)
	}
	return fmt.Sprintf("http://%s/devtools/inspector.html?ws=%s/devtools/page/%s", u.Host, u.Host, targetID), nil
}
