// Package id provides centralized ID generation for the backend.
//
// Two ID families are used:
//   - Session IDs: random 128-bit UUIDs in their canonical hyphenated form. These are
//     handed to UI clients and validated by format at the API boundary.
//   - Request IDs: ULIDs with a prefix, K-sortable, used for tracing and logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// RequestID identifies an API request
type RequestID string

// SpanID identifies a unit of work inside a request
type SpanID string

const (
	RequestPrefix = "req"
	SpanPrefix    = "span"
)

// SessionIDLength is the length of a canonical hyphenated UUID.
const SessionIDLength = 36

var sessionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewSessionID mints a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// IsSessionID reports whether s has the fixed-length hyphenated hex form of a session ID.
func IsSessionID(s string) bool {
	return len(s) == SessionIDLength && sessionIDPattern.MatchString(s)
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// IsRequestID reports whether s is a request id as minted by NewRequestID,
// or a bare ULID from a caller that does not prefix its ids.
func IsRequestID(s string) bool {
	return IsValid(strings.TrimPrefix(s, RequestPrefix+"_"))
}
