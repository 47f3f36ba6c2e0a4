//go:build !windows

package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// spawnPTY opens a PTY pair at the given size and starts shell on its slave
// as a session leader with the slave as controlling terminal.
func spawnPTY(shell, cwd string, rows, cols uint16) (*process, error) {
	master, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open pty: %v", ErrSpawnFailed, err)
	}
	// the child holds its own copy; the parent's must go so EOF reaches the master
	defer func() { _ = tty.Close() }()

	if err := pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		_ = master.Close()
		return nil, fmt.Errorf("%w: set size: %v", ErrSpawnFailed, err)
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), envTerm, envColorTerm)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		_ = master.Close()
		return nil, fmt.Errorf("%w: start %s: %v", ErrSpawnFailed, shell, err)
	}

	return &process{
		cmd:    cmd,
		master: master,
		pid:    uint32(cmd.Process.Pid),
	}, nil
}

func setWinsize(master *os.File, rows, cols uint16) error {
	return pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols})
}

// hangup sends SIGHUP to the child's process group, falling back to the child alone.
func hangup(p *process) error {
	return signalGroup(p, unix.SIGHUP)
}

// forceKill sends SIGKILL to the child's process group, falling back to the child alone.
func forceKill(p *process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *process, sig unix.Signal) error {
	pid := int(p.pid)
	if pid <= 0 || p.reaped.Load() {
		return nil
	}
	// the child is a session leader, so its pid is also its process group id
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
