//go:build windows

package terminal

import (
	"errors"
	"fmt"
	"os"
)

// ErrUnsupportedPlatform is wrapped into ErrSpawnFailed on hosts without a
// usable PTY backend.
var ErrUnsupportedPlatform = errors.New("pseudo-terminals are not supported on windows")

func spawnPTY(shell, _ string, _, _ uint16) (*process, error) {
	return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, shell, ErrUnsupportedPlatform)
}

func setWinsize(*os.File, uint16, uint16) error { return ErrUnsupportedPlatform }

func hangup(*process) error { return nil }

func forceKill(*process) error { return nil }

func isExecutable(string) bool { return false }
