package terminal

import (
	"fmt"
	"time"
)

// Tuning constants for the per-session workers.
const (
	// ReadBufferSize is the reader's fixed read size.
	ReadBufferSize = 4096
	// BatchWindow is how long the batcher keeps collecting after the first chunk of a batch.
	BatchWindow = 10 * time.Millisecond
	// MaxBatchSize caps the raw bytes of one delivered batch.
	MaxBatchSize = 64 * 1024
	// ExitPollInterval is how often the exit watcher checks the liveness flag.
	ExitPollInterval = 50 * time.Millisecond
	// GracePeriod is how long a hung-up child gets before it is force-killed.
	GracePeriod = 2 * time.Second
)

// Dimension bounds accepted by Create and Resize.
const (
	MinDimension = 1
	MaxDimension = 500
)

// Environment given to every spawned shell on top of the host environment.
const (
	envTerm      = "TERM=xterm-256color"
	envColorTerm = "COLORTERM=truecolor"
)

// CreateRequest describes a session to spawn.
type CreateRequest struct {
	// Shell is an absolute path or an allow-listed name; nil selects the platform default.
	Shell *string
	Cwd   string
	Rows  uint16
	Cols  uint16
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID        string    `json:"id"`
	PID       uint32    `json:"pid"`
	Shell     string    `json:"shell"`
	Cwd       string    `json:"cwd"`
	Rows      uint16    `json:"rows"`
	Cols      uint16    `json:"cols"`
	StartedAt time.Time `json:"started_at"`
	Alive     bool      `json:"alive"`
}

// ValidateDimensions checks rows and cols against the accepted range.
func ValidateDimensions(rows, cols uint16) error {
	if rows < MinDimension || rows > MaxDimension || cols < MinDimension || cols > MaxDimension {
		return fmt.Errorf("%w: rows=%d cols=%d (each must be %d..%d)",
			ErrInvalidDimensions, rows, cols, MinDimension, MaxDimension)
	}
	return nil
}

// Dimensions narrows wire-level sizes to PTY sizes. Values outside the
// accepted range, including negatives and anything past uint16, fail with
// ErrInvalidDimensions instead of wrapping.
func Dimensions(rows, cols int) (uint16, uint16, error) {
	if rows < MinDimension || rows > MaxDimension || cols < MinDimension || cols > MaxDimension {
		return 0, 0, fmt.Errorf("%w: rows=%d cols=%d (each must be %d..%d)",
			ErrInvalidDimensions, rows, cols, MinDimension, MaxDimension)
	}
	return uint16(rows), uint16(cols), nil
}

// ExitReason describes how a session's child terminated.
type ExitReason string

const (
	// ExitNatural: the child exited without being asked to.
	ExitNatural ExitReason = "exited"
	// ExitHangup: the child exited after SIGHUP.
	ExitHangup ExitReason = "hangup"
	// ExitForced: the child outlived the grace period and was killed.
	ExitForced ExitReason = "forced"
)
