package view

// NavigationID identifies one navigation started by a view. Zero means the
// view could not attribute the event to a navigation.
type NavigationID uint64

// EventKind is a view lifecycle event.
type EventKind int

const (
	EventDidStartLoad EventKind = iota + 1
	EventDidFinishLoad
	EventDidFailLoad
	EventClosed
)

// String returns the event name used by the renderer's listeners.
func (k EventKind) String() string {
	switch k {
	case EventDidStartLoad:
		return "did-start-load"
	case EventDidFinishLoad:
		return "did-finish-load"
	case EventDidFailLoad:
		return "did-fail-load"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is emitted asynchronously by a view.
type Event struct {
	Kind             EventKind
	ID               NavigationID
	URL              string
	ErrorCode        int
	ErrorDescription string
}

// History is a snapshot of the view's session history.
type History struct {
	Entries []string
	Index   int
}

// CanGoBack reports whether an entry exists before the current one.
func (h History) CanGoBack() bool {
	return h.Index > 0 && h.Index < len(h.Entries)
}

// CanGoForward reports whether an entry exists after the current one.
func (h History) CanGoForward() bool {
	return h.Index >= 0 && h.Index < len(h.Entries)-1
}

// Current returns the current entry, or "" for an empty history.
func (h History) Current() string {
	if h.Index < 0 || h.Index >= len(h.Entries) {
		return ""
	}
	return h.Entries[h.Index]
}
