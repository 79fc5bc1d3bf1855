package argscodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrMalformed is returned when a serialized ConfigMap cannot be decoded.
var ErrMalformed = errors.New("malformed config map")

const prefixLen = 2

// Parse builds a ConfigMap from raw argument tokens.
func Parse(rawArgs []string) ConfigMap {
	b := newBuilder(len(rawArgs))
	for _, token := range rawArgs {
		body := token
		if len(body) >= prefixLen {
			body = body[prefixLen:]
		} else {
			body = ""
		}

		key, value, found := strings.Cut(body, "=")
		if found {
			b.add(key, &value)
		} else {
			b.add(key, nil)
		}
	}
	return b.build()
}

// Serialize encodes a ConfigMap for transfer across the isolation boundary.
func Serialize(m ConfigMap) (string, error) {
	wire := make(map[string]*string, m.Len())
	for _, key := range m.Keys() {
		if value, ok := m.Lookup(key); ok {
			v := value
			wire[key] = &v
		} else {
			wire[key] = nil
		}
	}

	data, err := sonic.ConfigStd.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("serialize config map: %w", err)
	}
	return string(data), nil
}

// Deserialize decodes a ConfigMap produced by Serialize.
func Deserialize(data string) (ConfigMap, error) {
	var raw map[string]interface{}
	if err := sonic.ConfigStd.UnmarshalFromString(data, &raw); err != nil {
		return ConfigMap{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return ConfigMap{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	// JSON objects carry no order; sorted keys keep Keys() deterministic.
	b := newBuilder(len(raw))
	for _, key := range sortedKeys(raw) {
		switch v := raw[key].(type) {
		case nil:
			b.add(key, nil)
		case string:
			b.add(key, &v)
		default:
			return ConfigMap{}, fmt.Errorf("%w: value for %q is %T, want string", ErrMalformed, key, v)
		}
	}
	return b.build(), nil
}
