package terminal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// allowedShellNames are the bare names accepted for PATH lookup (case-insensitive).
var allowedShellNames = []string{
	"powershell.exe",
	"pwsh.exe",
	"cmd.exe",
	"bash.exe",
	"bash",
	"zsh",
	"fish",
	"sh",
	"dash",
	"pwsh",
	"powershell",
	"nu",
	"elvish",
}

// Resolver turns a requested shell into a validated executable path.
type Resolver struct {
	// Getenv reads PATH and SHELL.
	Getenv func(string) string
	// Executable reports whether a regular file may be executed.
	Executable func(path string) bool
}

// NewResolver returns a Resolver for the host platform and environment.
func NewResolver() *Resolver {
	return &Resolver{
		Getenv:     os.Getenv,
		Executable: isExecutable,
	}
}

// ResolveShell resolves with the host resolver.
func ResolveShell(requested *string) (string, error) {
	return NewResolver().Resolve(requested)
}

// Resolve validates the requested shell.
//
//   - nil: first valid platform default
//   - absolute path: must exist and be a regular file; symlinks are resolved
//   - bare name: must be allow-listed and found on PATH
func (r *Resolver) Resolve(requested *string) (string, error) {
	if requested == nil {
		return r.resolveDefault()
	}
	return r.resolve(*requested)
}

func (r *Resolver) resolve(raw string) (string, error) {
	shell := strings.TrimSpace(raw)
	if shell == "" {
		return "", fmt.Errorf("%w: shell path cannot be empty", ErrInvalidShellPath)
	}

	if filepath.IsAbs(shell) {
		return resolveAbsolute(shell)
	}

	if !isAllowedShellName(shell) {
		return "", fmt.Errorf("%w: got %q", ErrShellNotAllowed, shell)
	}

	resolved, ok := r.lookPath(shell)
	if !ok {
		return "", fmt.Errorf("%w: %q not found in PATH", ErrShellNotFound, shell)
	}
	return resolved, nil
}

// resolveDefault walks the platform default chain; the first candidate that
// passes full validation wins.
func (r *Resolver) resolveDefault() (string, error) {
	candidates := r.defaultCandidates()

	var errs []error
	for _, candidate := range candidates {
		resolved, err := r.resolve(candidate)
		if err == nil {
			return resolved, nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("%w: no usable default shell (tried %s): %v",
		ErrShellNotFound, strings.Join(candidates, ", "), errors.Join(errs...))
}

func (r *Resolver) defaultCandidates() []string {
	var candidates []string
	if shell := strings.TrimSpace(r.Getenv("SHELL")); shell != "" {
		candidates = append(candidates, shell)
	}
	return append(candidates, "/bin/zsh", "/bin/bash", "/bin/sh")
}

func resolveAbsolute(shell string) (string, error) {
	canonical, err := filepath.EvalSymlinks(shell)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrShellNotFound, shell)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidShellPath, shell, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidShellPath, shell, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a file", ErrInvalidShellPath, shell)
	}

	abs, err := filepath.Abs(canonical)
	if err != nil {
		return canonical, nil
	}
	return abs, nil
}

func isAllowedShellName(name string) bool {
	for _, allowed := range allowedShellNames {
		if strings.EqualFold(name, allowed) {
			return true
		}
	}
	return false
}

// lookPath searches each PATH directory in order for an executable regular file.
func (r *Resolver) lookPath(name string) (string, bool) {
	pathVar := r.Getenv("PATH")
	if pathVar == "" {
		return "", false
	}

	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if !r.isExecutableFile(candidate) {
			continue
		}
		if canonical, err := filepath.EvalSymlinks(candidate); err == nil {
			return canonical, true
		}
		return candidate, true
	}
	return "", false
}

func (r *Resolver) isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if r.Executable == nil {
		return true
	}
	return r.Executable(path)
}
