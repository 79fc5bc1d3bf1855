package argscodec

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantKeys  []string
		wantValue map[string]string
		absent    []string
	}{
		{
			name:      "single pair",
			args:      []string{"--url=https://example.test"},
			wantKeys:  []string{"url"},
			wantValue: map[string]string{"url": "https://example.test"},
		},
		{
			name:      "first occurrence wins",
			args:      []string{"--url=https://example.test", "--url=https://other.test"},
			wantKeys:  []string{"url"},
			wantValue: map[string]string{"url": "https://example.test"},
		},
		{
			name:      "split on first equals only",
			args:      []string{"--query=a=b=c"},
			wantKeys:  []string{"query"},
			wantValue: map[string]string{"query": "a=b=c"},
		},
		{
			name:      "empty value is defined",
			args:      []string{"--name="},
			wantKeys:  []string{"name"},
			wantValue: map[string]string{"name": ""},
		},
		{
			name:     "token without delimiter records absent value",
			args:     []string{"--headless"},
			wantKeys: []string{"headless"},
			absent:   []string{"headless"},
		},
		{
			name:      "absent first occurrence still wins",
			args:      []string{"--headless", "--headless=true"},
			wantKeys:  []string{"headless"},
			absent:    []string{"headless"},
			wantValue: map[string]string{},
		},
		{
			name:      "prefix stripped without checking dashes",
			args:      []string{"xxkey=v"},
			wantKeys:  []string{"key"},
			wantValue: map[string]string{"key": "v"},
		},
		{
			name:     "short token yields empty key",
			args:     []string{"-"},
			wantKeys: []string{""},
			absent:   []string{""},
		},
		{
			name:      "keys keep first-seen order",
			args:      []string{"--b=2", "--a=1", "--c=3", "--a=9"},
			wantKeys:  []string{"b", "a", "c"},
			wantValue: map[string]string{"a": "1", "b": "2", "c": "3"},
		},
		{
			name:     "no tokens",
			args:     nil,
			wantKeys: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse(tt.args)

			assert.Equal(t, tt.wantKeys, m.Keys())
			for k, want := range tt.wantValue {
				got, ok := m.Lookup(k)
				assert.True(t, ok, "key %q should have a value", k)
				assert.Equal(t, want, got)
			}
			for _, k := range tt.absent {
				assert.True(t, m.Has(k), "key %q should be recorded", k)
				_, ok := m.Lookup(k)
				assert.False(t, ok, "key %q should have no value", k)
			}
		})
	}
}

// Current behavior, revisit: a token without '=' is accepted rather than rejected.
func TestParseToleratesMissingDelimiter(t *testing.T) {
	m := Parse([]string{"--flag", "--url=https://example.test"})

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("flag"))
	assert.Equal(t, "", m.Get("flag"))
	assert.Equal(t, "https://example.test", m.Get("url"))
}

func TestParseFirstWinsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{"url", "mode", "user", "x"}

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(12)
		args := make([]string, 0, n)
		first := map[string]string{}
		for i := 0; i < n; i++ {
			k := keys[rng.Intn(len(keys))]
			v := fmt.Sprintf("v%d", rng.Intn(1000))
			args = append(args, "--"+k+"="+v)
			if _, seen := first[k]; !seen {
				first[k] = v
			}
		}

		m := Parse(args)
		require.Equal(t, len(first), m.Len())
		for k, v := range first {
			assert.Equal(t, v, m.Get(k), "args=%v", args)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := [][]string{
		nil,
		{"--url=https://example.test"},
		{"--a=1", "--b=", "--c"},
		{"--quote=\"hi\"", "--unicode=héllo✓", "--newline=a\nb"},
		{"--json={\"a\":1}", "--eq=a=b"},
	}

	for _, args := range cases {
		m := Parse(args)

		data, err := Serialize(m)
		require.NoError(t, err)

		back, err := Deserialize(data)
		require.NoError(t, err)
		assert.True(t, m.Equal(back), "round trip mismatch for %v: %s", args, data)
	}
}

func TestSerializeShape(t *testing.T) {
	data, err := Serialize(Parse([]string{"--url=https://example.test", "--flag"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.test","flag":null}`, data)
}

func TestDeserializeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "url=https://example.test"},
		{"array", `["a"]`},
		{"null", "null"},
		{"number value", `{"port":8080}`},
		{"nested value", `{"a":{"b":"c"}}`},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestConfigMapIsACopy(t *testing.T) {
	m := Parse([]string{"--a=1"})

	out := m.Map()
	out["a"] = "changed"
	out["b"] = "added"

	keys := m.Keys()
	keys[0] = "mutated"

	assert.Equal(t, "1", m.Get("a"))
	assert.False(t, m.Has("b"))
	assert.Equal(t, []string{"a"}, m.Keys())
}

func TestZeroConfigMap(t *testing.T) {
	var m ConfigMap

	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Has("url"))
	assert.Empty(t, m.Map())

	data, err := Serialize(m)
	require.NoError(t, err)
	assert.Equal(t, "{}", data)
}
