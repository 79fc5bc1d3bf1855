package bridge

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Channel names a message type on the wire.
type Channel string

const (
	ChannelLog      Channel = "log-to-main"
	ChannelDevTools Channel = "open-dev-tools"
)

// Envelope is the unit carried by the transport.
type Envelope struct {
	Channel Channel `json:"channel"`
	Level   string  `json:"level,omitempty"`
	Message string  `json:"message,omitempty"`
}

// wireJSON matches JSON.stringify output for the payloads the bridge carries:
// no HTML escaping, deterministic key order.
var wireJSON = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
}.Froze()

var (
	errMissingChannel = errors.New("missing channel")
	errUnknownChannel = errors.New("unknown channel")
)

// Encode serializes an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	data, err := wireJSON.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a wire payload. Any failure is a *ProtocolDecodeError.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := wireJSON.Unmarshal(data, &env); err != nil {
		return Envelope{}, newDecodeError("envelope", string(data), err)
	}

	switch env.Channel {
	case ChannelLog, ChannelDevTools:
		return env, nil
	case "":
		return Envelope{}, newDecodeError("envelope", string(data), errMissingChannel)
	default:
		return Envelope{}, newDecodeError("envelope", string(data),
			fmt.Errorf("%w %q", errUnknownChannel, env.Channel))
	}
}

// Stringify converts a log payload to the string that goes on the wire.
// Strings pass through; everything else is JSON-encoded with sorted object
// keys, falling back to fmt formatting for values JSON cannot represent.
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case error:
		return s.Error()
	}

	data, err := wireJSON.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
