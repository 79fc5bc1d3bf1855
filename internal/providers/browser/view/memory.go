package view

import (
	"context"
	"errors"
	"sync"

	"github.com/mfduar8766/browserautomation/internal/shared/mailbox"
)

// ErrViewClosed is returned by operations on a closed view.
var ErrViewClosed = errors.New("view closed")

// Failure describes a scripted load failure for the memory view.
type Failure struct {
	Code        int
	Description string
}

// Memory is an in-process view. Navigations complete immediately but their
// events are delivered asynchronously through Next, like a real view.
type Memory struct {
	mu       sync.Mutex
	entries  []string
	index    int
	nextID   NavigationID
	failures map[string]Failure
	devtools int
	closed   bool

	events *mailbox.Mailbox[Event]
}

// MemoryOption configures a Memory view.
type MemoryOption func(*Memory)

// WithFailure makes every load of url fail with the given error.
func WithFailure(url string, f Failure) MemoryOption {
	return func(m *Memory) { m.failures[url] = f }
}

// NewMemory creates an empty memory view.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		index:    -1,
		failures: make(map[string]Failure),
		events:   mailbox.New[Event](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load navigates to url, dropping any forward history.
func (m *Memory) Load(ctx context.Context, url string) (NavigationID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrViewClosed
	}
	id := m.begin(url)
	if f, failed := m.failures[url]; failed {
		m.emit(Event{Kind: EventDidFailLoad, ID: id, URL: url, ErrorCode: f.Code, ErrorDescription: f.Description})
		return id, nil
	}

	m.entries = append(m.entries[:m.index+1], url)
	m.index = len(m.entries) - 1
	m.emit(Event{Kind: EventDidFinishLoad, ID: id, URL: url})
	return id, nil
}

// Reload reloads the current entry. With nothing loaded it reloads about:blank.
func (m *Memory) Reload(ctx context.Context) (NavigationID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrViewClosed
	}
	url := m.currentLocked()
	if url == "" {
		url = "about:blank"
	}
	id := m.begin(url)
	if f, failed := m.failures[url]; failed {
		m.emit(Event{Kind: EventDidFailLoad, ID: id, URL: url, ErrorCode: f.Code, ErrorDescription: f.Description})
		return id, nil
	}
	m.emit(Event{Kind: EventDidFinishLoad, ID: id, URL: url})
	return id, nil
}

// GoBack moves one entry back. It returns id 0 when there is nothing to go
// back to.
func (m *Memory) GoBack(ctx context.Context) (NavigationID, error) {
	return m.step(-1)
}

// GoForward moves one entry forward. It returns id 0 when there is nothing
// to go forward to.
func (m *Memory) GoForward(ctx context.Context) (NavigationID, error) {
	return m.step(1)
}

func (m *Memory) step(delta int) (NavigationID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrViewClosed
	}
	target := m.index + delta
	if target < 0 || target >= len(m.entries) {
		return 0, nil
	}
	m.index = target
	url := m.entries[target]
	id := m.begin(url)
	m.emit(Event{Kind: EventDidFinishLoad, ID: id, URL: url})
	return id, nil
}

// History returns a copy of the session history.
func (m *Memory) History(ctx context.Context) (History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return History{Entries: append([]string(nil), m.entries...), Index: m.index}, nil
}

// URL returns the current entry.
func (m *Memory) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// OpenDevTools records the request.
func (m *Memory) OpenDevTools(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrViewClosed
	}
	m.devtools++
	return nil
}

// DevToolsOpened returns how many times devtools were requested.
func (m *Memory) DevToolsOpened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devtools
}

// Next returns the next lifecycle event.
func (m *Memory) Next(ctx context.Context) (Event, error) {
	ev, err := m.events.Pop(ctx)
	if errors.Is(err, mailbox.ErrClosed) {
		return Event{}, ErrViewClosed
	}
	return ev, err
}

// Close emits a closed event and stops the view.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.emit(Event{Kind: EventClosed})
	m.closed = true
	m.events.Close()
	return nil
}

func (m *Memory) begin(url string) NavigationID {
	m.nextID++
	m.emit(Event{Kind: EventDidStartLoad, ID: m.nextID, URL: url})
	return m.nextID
}

func (m *Memory) emit(ev Event) {
	m.events.Push(ev)
}

func (m *Memory) currentLocked() string {
	if m.index < 0 || m.index >= len(m.entries) {
		return ""
	}
	return m.entries[m.index]
}
