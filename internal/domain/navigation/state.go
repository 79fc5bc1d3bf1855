package navigation

// Status is the load status of the view.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a snapshot of the controller.
type State struct {
	Status       Status `json:"status"`
	URL          string `json:"url,omitempty"`
	CanGoBack    bool   `json:"can_go_back"`
	CanGoForward bool   `json:"can_go_forward"`
	LastError    string `json:"last_error,omitempty"`
}

// Outcome is the result of a back/forward request.
type Outcome int

const (
	OutcomeNavigated Outcome = iota
	// OutcomeNoHistory means the request was not permitted because there was
	// no entry to move to. It is informational, not a failure.
	OutcomeNoHistory
)

func (o Outcome) String() string {
	if o == OutcomeNoHistory {
		return "no history available"
	}
	return "navigated"
}
