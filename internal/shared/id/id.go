// Package id provides ULID-based identifiers for harness runs and observers.
//
// ULIDs are lexicographically sortable, so log lines and observer streams
// from successive runs order naturally. Each identifier type carries a short
// prefix that makes it recognisable in logs (run_*, obs_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one harness invocation
type RunID string

// ObserverID identifies one connected event observer
type ObserverID string

const (
	RunPrefix      = "run"
	ObserverPrefix = "obs"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRunID generates a new run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

// NewObserverID generates a new observer ID
func NewObserverID() ObserverID {
	return ObserverID(Default().GenerateWithPrefix(ObserverPrefix))
}

func (id RunID) String() string      { return string(id) }
func (id ObserverID) String() string { return string(id) }
