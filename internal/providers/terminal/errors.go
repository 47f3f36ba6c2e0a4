package terminal

import (
	"errors"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/resilience"
)

var (
	ErrInvalidWorkingDirectory = errors.New("invalid working directory")
	ErrInvalidDimensions       = errors.New("invalid terminal dimensions")
	ErrInvalidShellPath        = errors.New("invalid shell path")
	ErrShellNotAllowed         = errors.New("shell must be an absolute path or a known shell name")
	ErrShellNotFound           = errors.New("shell not found")
	ErrSpawnFailed             = errors.New("failed to spawn terminal")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionClosed           = errors.New("session is closed")
	ErrInvalidSessionID        = errors.New("invalid session id")
	ErrTooManySessions         = errors.New("too many terminal sessions")
)

// Error codes shared with UI clients.
const (
	CodeInvalidWorkingDirectory = "InvalidWorkingDirectory"
	CodeInvalidDimensions       = "InvalidDimensions"
	CodeInvalidShellPath        = "InvalidShellPath"
	CodeShellNotAllowed         = "ShellNotAllowed"
	CodeShellNotFound           = "ShellNotFound"
	CodeSpawnFailed             = "SpawnFailed"
	CodeSessionNotFound         = "SessionNotFound"
	CodeSessionClosed           = "SessionClosed"
	CodeInvalidSessionID        = "InvalidSessionId"
	CodeTooManySessions         = "TooManySessions"
	CodeSpawnUnavailable        = "SpawnUnavailable"
	CodeInternal                = "Internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidWorkingDirectory, CodeInvalidWorkingDirectory},
	{ErrInvalidDimensions, CodeInvalidDimensions},
	{ErrInvalidShellPath, CodeInvalidShellPath},
	{ErrShellNotAllowed, CodeShellNotAllowed},
	{ErrShellNotFound, CodeShellNotFound},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrSessionClosed, CodeSessionClosed},
	{ErrInvalidSessionID, CodeInvalidSessionID},
	{ErrTooManySessions, CodeTooManySessions},
	{resilience.ErrCircuitOpen, CodeSpawnUnavailable},
	{resilience.ErrTooManyRequests, CodeSpawnUnavailable},
	{ErrSpawnFailed, CodeSpawnFailed},
}

// Code maps an error from this package to its wire code.
// Unknown errors map to CodeInternal and nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
