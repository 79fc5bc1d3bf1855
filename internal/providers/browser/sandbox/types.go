package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/mfduar8766/browserautomation/internal/domain/navigation"
)

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = errors.New("sandbox: element not found")

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per-entry execution timeout
	MaxCallStackSize int           // 0 keeps the goja default
	EnableConsole    bool          // Capture console.log/warn/error/info
}

// Result holds execution result
type Result struct {
	Value      interface{}   // Return value
	Console    []LogEntry    // Console output
	DOMChanges []DOMChange   // DOM modifications
	Duration   time.Duration // Execution time
	Error      error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string      // set_attribute, set_text
	Selector string      // CSS selector
	Property string      // Property name
	Value    interface{} // New value
}

// Webview is what the webview element drives. *navigation.Controller
// satisfies it.
type Webview interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) (navigation.Outcome, error)
	GoForward(ctx context.Context) (navigation.Outcome, error)
	State() navigation.State
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}
