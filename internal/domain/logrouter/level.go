package logrouter

// Level is the severity of a log event raised by the isolated context.
type Level int

const (
	LevelUnknown Level = iota
	LevelLog
	LevelWarn
	LevelError
	LevelInfo
)

// ParseLevel maps a wire level to a Level. Unrecognized values return
// LevelUnknown and false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "log":
		return LevelLog, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "info":
		return LevelInfo, true
	default:
		return LevelUnknown, false
	}
}

// String returns the wire form of the level.
func (l Level) String() string {
	switch l {
	case LevelLog:
		return "log"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Event is a log message as it arrived from the bridge. Level keeps the raw
// wire value so the fallback sink can report what was actually sent.
type Event struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
