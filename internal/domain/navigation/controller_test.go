package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/mfduar8766/browserautomation/internal/providers/browser/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubView hands out increasing ids and never emits events, so tests feed
// events to the controller by hand.
type stubView struct {
	next    view.NavigationID
	history view.History
	loadErr error
	noBack  bool
	loads   []string
}

func (s *stubView) id() view.NavigationID {
	s.next++
	return s.next
}

func (s *stubView) Load(ctx context.Context, url string) (view.NavigationID, error) {
	if s.loadErr != nil {
		return 0, s.loadErr
	}
	s.loads = append(s.loads, url)
	return s.id(), nil
}

func (s *stubView) Reload(ctx context.Context) (view.NavigationID, error) {
	return s.id(), nil
}

func (s *stubView) GoBack(ctx context.Context) (view.NavigationID, error) {
	if s.noBack {
		return 0, nil
	}
	return s.id(), nil
}

func (s *stubView) GoForward(ctx context.Context) (view.NavigationID, error) {
	if !s.history.CanGoForward() {
		return 0, nil
	}
	return s.id(), nil
}

func (s *stubView) History(ctx context.Context) (view.History, error) {
	return s.history, nil
}

func TestController_InitialState(t *testing.T) {
	c := New(&stubView{})
	assert.Equal(t, State{Status: StatusIdle}, c.State())
}

func TestController_Navigate(t *testing.T) {
	ctx := context.Background()
	v := &stubView{history: view.History{Entries: []string{"a", "b"}, Index: 1}}
	c := New(v)

	require.NoError(t, c.Navigate(ctx, "b"))
	assert.Equal(t, StatusLoading, c.State().Status)
	assert.Equal(t, []string{"b"}, v.loads)

	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1, URL: "b"})
	st := c.State()
	assert.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, "b", st.URL)
	assert.True(t, st.CanGoBack)
	assert.False(t, st.CanGoForward)
}

func TestController_NavigateEmptyURL(t *testing.T) {
	c := New(&stubView{})
	assert.ErrorIs(t, c.Navigate(context.Background(), ""), ErrEmptyURL)
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestController_NavigateViewError(t *testing.T) {
	var reported []string
	v := &stubView{loadErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	c := New(v, WithFailureHandler(func(st State, url string) {
		reported = append(reported, url)
	}))

	err := c.Navigate(context.Background(), "https://nowhere.test")
	require.Error(t, err)

	st := c.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", st.LastError)
	assert.Equal(t, []string{"https://nowhere.test"}, reported)
}

func TestController_FinishThenFailKeepsHistoryFlags(t *testing.T) {
	ctx := context.Background()
	v := &stubView{history: view.History{Entries: []string{"a", "b"}, Index: 1}}
	var failures int
	c := New(v, WithFailureHandler(func(State, string) { failures++ }))

	require.NoError(t, c.Navigate(ctx, "b"))
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1, URL: "b"})
	before := c.State().CanGoBack

	// history changes after the finish; a failure must not recompute it
	v.history = view.History{Entries: []string{"b"}, Index: 0}
	c.HandleEvent(ctx, view.Event{
		Kind:             view.EventDidFailLoad,
		ID:               1,
		URL:              "b",
		ErrorCode:        -105,
		ErrorDescription: "ERR_NAME_NOT_RESOLVED",
	})

	st := c.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "ERR_NAME_NOT_RESOLVED (-105)", st.LastError)
	assert.Equal(t, before, st.CanGoBack)
	assert.True(t, st.CanGoBack)
	assert.Equal(t, 1, failures)
}

func TestController_GoBackWithoutHistory(t *testing.T) {
	ctx := context.Background()
	v := &stubView{history: view.History{Entries: []string{"a"}, Index: 0}}
	c := New(v)

	require.NoError(t, c.Navigate(ctx, "a"))
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1, URL: "a"})
	before := c.State()
	require.False(t, before.CanGoBack)

	var changes int
	c.observers = append(c.observers, func(State, State) { changes++ })

	outcome, err := c.GoBack(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoHistory, outcome)
	assert.Equal(t, "no history available", outcome.String())
	assert.Equal(t, before, c.State())
	assert.Zero(t, changes)
	assert.Equal(t, view.NavigationID(1), v.next)
}

func TestController_GoBack(t *testing.T) {
	ctx := context.Background()
	v := &stubView{history: view.History{Entries: []string{"a", "b"}, Index: 1}}
	c := New(v)

	require.NoError(t, c.Navigate(ctx, "b"))
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1, URL: "b"})

	outcome, err := c.GoBack(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNavigated, outcome)
	assert.Equal(t, StatusLoading, c.State().Status)

	v.history.Index = 0
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 2, URL: "a"})
	st := c.State()
	assert.Equal(t, StatusLoaded, st.Status)
	assert.False(t, st.CanGoBack)
	assert.True(t, st.CanGoForward)
}

func TestController_GoForwardNothingAhead(t *testing.T) {
	ctx := context.Background()
	c := New(&stubView{})

	outcome, err := c.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoHistory, outcome)
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestController_ReloadFromAnyState(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		setup func(c *Controller)
	}{
		{name: "idle", setup: func(*Controller) {}},
		{name: "loaded", setup: func(c *Controller) {
			_ = c.Navigate(ctx, "a")
			c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1})
		}},
		{name: "failed", setup: func(c *Controller) {
			_ = c.Navigate(ctx, "a")
			c.HandleEvent(ctx, view.Event{Kind: view.EventDidFailLoad, ID: 1})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&stubView{})
			tt.setup(c)
			require.NoError(t, c.Reload(ctx))
			assert.Equal(t, StatusLoading, c.State().Status)
		})
	}
}

func TestController_StaleEventsIgnored(t *testing.T) {
	ctx := context.Background()
	c := New(&stubView{})

	require.NoError(t, c.Navigate(ctx, "first"))
	require.NoError(t, c.Navigate(ctx, "second"))

	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFailLoad, ID: 1, URL: "first", ErrorDescription: "aborted"})
	st := c.State()
	assert.Equal(t, StatusLoading, st.Status)
	assert.Equal(t, "second", st.URL)
	assert.Empty(t, st.LastError)

	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 2, URL: "second"})
	assert.Equal(t, StatusLoaded, c.State().Status)
}

func TestController_UnattributedEventsApplied(t *testing.T) {
	ctx := context.Background()
	c := New(&stubView{})
	require.NoError(t, c.Navigate(ctx, "a"))

	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, URL: "a"})
	assert.Equal(t, StatusLoaded, c.State().Status)
}

func TestController_IdleIgnoresLoadResults(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		ev   view.Event
	}{
		{name: "unattributed finish", ev: view.Event{Kind: view.EventDidFinishLoad, URL: "a"}},
		{name: "unattributed failure", ev: view.Event{Kind: view.EventDidFailLoad, URL: "a", ErrorCode: -105}},
		{name: "attributed finish", ev: view.Event{Kind: view.EventDidFinishLoad, ID: 3, URL: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := 0
			changes := 0
			c := New(&stubView{},
				WithFailureHandler(func(State, string) { failures++ }),
				WithObserver(func(State, State) { changes++ }),
			)

			c.HandleEvent(ctx, tt.ev)
			assert.Equal(t, State{Status: StatusIdle}, c.State())
			assert.Zero(t, failures)
			assert.Zero(t, changes)
		})
	}

	c := New(&stubView{})
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidStartLoad, URL: "a"})
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, URL: "a"})
	assert.Equal(t, StatusLoaded, c.State().Status)
}

func TestController_FinishClearsLastError(t *testing.T) {
	ctx := context.Background()
	c := New(&stubView{})

	require.NoError(t, c.Navigate(ctx, "a"))
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFailLoad, ID: 1, ErrorCode: -3})
	assert.Equal(t, "load failed (-3)", c.State().LastError)

	require.NoError(t, c.Reload(ctx))
	assert.Equal(t, "load failed (-3)", c.State().LastError)

	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 2})
	assert.Empty(t, c.State().LastError)
}

func TestController_Observer(t *testing.T) {
	ctx := context.Background()
	var seen []Status
	c := New(&stubView{}, WithObserver(func(from, to State) {
		seen = append(seen, to.Status)
	}))

	require.NoError(t, c.Navigate(ctx, "a"))
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidStartLoad, ID: 1, URL: "a"})
	c.HandleEvent(ctx, view.Event{Kind: view.EventDidFinishLoad, ID: 1, URL: "a"})
	c.HandleEvent(ctx, view.Event{Kind: view.EventClosed})

	assert.Equal(t, []Status{StatusLoading, StatusLoaded}, seen)
}

func TestController_WithMemoryView(t *testing.T) {
	ctx := context.Background()
	v := view.NewMemory(view.WithFailure("https://broken.test", view.Failure{Code: -6, Description: "ERR_FILE_NOT_FOUND"}))
	c := New(v)

	pump := func(n int) {
		for i := 0; i < n; i++ {
			ev, err := v.Next(ctx)
			require.NoError(t, err)
			c.HandleEvent(ctx, ev)
		}
	}

	require.NoError(t, c.Navigate(ctx, "https://a.test"))
	pump(2)
	require.NoError(t, c.Navigate(ctx, "https://b.test"))
	pump(2)
	assert.Equal(t, State{Status: StatusLoaded, URL: "https://b.test", CanGoBack: true}, c.State())

	require.NoError(t, c.Navigate(ctx, "https://broken.test"))
	pump(2)
	st := c.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "ERR_FILE_NOT_FOUND (-6)", st.LastError)
	assert.True(t, st.CanGoBack)

	outcome, err := c.GoBack(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNavigated, outcome)
	pump(2)
	assert.Equal(t, State{Status: StatusLoaded, URL: "https://a.test", CanGoForward: true}, c.State())
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusLoading, "loading"},
		{StatusLoaded, "loaded"},
		{StatusFailed, "failed"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}
