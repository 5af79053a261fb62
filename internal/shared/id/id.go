// Package id generates sortable, prefixed identifiers.
//
// IDs are ULIDs: lexicographic order matches creation time, which keeps
// connection and batch ids in logs readable in order.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ClientID identifies a stream connection.
type ClientID string

// BatchID identifies an uploaded render-layer log batch.
type BatchID string

const (
	ClientPrefix = "ws"
	BatchPrefix  = "logs"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic entropy from crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0), time.Now)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock, for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix creates a prefixed ULID string
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewClientID generates a stream connection id.
func NewClientID() ClientID {
	return ClientID(Default().WithPrefix(ClientPrefix))
}

// NewBatchID generates a log batch id.
func NewBatchID() BatchID {
	return BatchID(Default().WithPrefix(BatchPrefix))
}

func (id ClientID) String() string { return string(id) }
func (id BatchID) String() string  { return string(id) }

// Timestamp extracts the creation time from a prefixed or bare id.
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
