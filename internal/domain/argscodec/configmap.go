package argscodec

import "sort"

type entry struct {
	value   string
	defined bool
}

// ConfigMap is an immutable mapping from argument key to value. The zero
// value is an empty map.
type ConfigMap struct {
	entries map[string]entry
	order   []string
}

// Lookup returns the value for key and whether a value is defined.
func (m ConfigMap) Lookup(key string) (string, bool) {
	e, ok := m.entries[key]
	if !ok || !e.defined {
		return "", false
	}
	return e.value, true
}

// Get returns the value for key, or "" when absent.
func (m ConfigMap) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

// Has reports whether key was recorded, with or without a value.
func (m ConfigMap) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Keys returns the recorded keys in first-seen order.
func (m ConfigMap) Keys() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of recorded keys.
func (m ConfigMap) Len() int {
	return len(m.order)
}

// Map returns a copy of the keys that have defined values.
func (m ConfigMap) Map() map[string]string {
	out := make(map[string]string, len(m.entries))
	for k, e := range m.entries {
		if e.defined {
			out[k] = e.value
		}
	}
	return out
}

// Equal reports whether both maps record the same keys with the same values.
// Key order is not compared.
func (m ConfigMap) Equal(other ConfigMap) bool {
	if len(m.entries) != len(other.entries) {
		return false
	}
	for k, e := range m.entries {
		o, ok := other.entries[k]
		if !ok || o != e {
			return false
		}
	}
	return true
}

type builder struct {
	entries map[string]entry
	order   []string
}

func newBuilder(capacity int) *builder {
	return &builder{entries: make(map[string]entry, capacity)}
}

// add records key unless it is already present.
func (b *builder) add(key string, value *string) {
	if _, exists := b.entries[key]; exists {
		return
	}
	e := entry{}
	if value != nil {
		e = entry{value: *value, defined: true}
	}
	b.entries[key] = e
	b.order = append(b.order, key)
}

func (b *builder) build() ConfigMap {
	return ConfigMap{entries: b.entries, order: b.order}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
