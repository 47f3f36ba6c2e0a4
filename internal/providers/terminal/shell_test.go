package terminal

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// envMap builds a Getenv over a fixed map.
func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// writeExecutable creates a small script with the given mode.
func writeExecutable(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

func canonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func unixResolver(vars map[string]string) *Resolver {
	return &Resolver{Getenv: envMap(vars), Executable: isExecutable}
}

func TestResolveRejectsBlank(t *testing.T) {
	r := unixResolver(nil)

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := r.Resolve(strPtr(input))
		assert.ErrorIs(t, err, ErrInvalidShellPath, "input %q", input)
		assert.Equal(t, CodeInvalidShellPath, Code(err))
	}
}

func TestResolveRejectsUnknownName(t *testing.T) {
	r := unixResolver(map[string]string{"PATH": t.TempDir()})

	for _, input := range []string{"not-a-shell", "python", "bin/bash", "./bash"} {
		_, err := r.Resolve(strPtr(input))
		assert.ErrorIs(t, err, ErrShellNotAllowed, "input %q", input)
	}
}

func TestResolveAbsolutePath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	dir := t.TempDir()
	shell := writeExecutable(t, dir, "myshell", 0o755)
	r := unixResolver(nil)

	t.Run("existing file", func(t *testing.T) {
		got, err := r.Resolve(strPtr(shell))
		require.NoError(t, err)
		assert.Equal(t, canonical(t, shell), got)
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		got, err := r.Resolve(strPtr("  " + shell + " "))
		require.NoError(t, err)
		assert.Equal(t, canonical(t, shell), got)
	})

	t.Run("symlink is resolved", func(t *testing.T) {
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(shell, link))
		got, err := r.Resolve(strPtr(link))
		require.NoError(t, err)
		assert.Equal(t, canonical(t, shell), got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.Resolve(strPtr(filepath.Join(dir, "cosmos_missing_shell")))
		assert.ErrorIs(t, err, ErrShellNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := r.Resolve(strPtr(dir))
		assert.ErrorIs(t, err, ErrInvalidShellPath)
	})
}

func TestResolveBareNameFromPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix execute bits")
	}
	empty := t.TempDir()
	nonExec := t.TempDir()
	good := t.TempDir()

	writeExecutable(t, nonExec, "bash", 0o644)
	shell := writeExecutable(t, good, "bash", 0o755)
	require.NoError(t, os.Mkdir(filepath.Join(empty, "zsh"), 0o755))

	pathVar := strings.Join([]string{empty, nonExec, good}, string(os.PathListSeparator))
	r := unixResolver(map[string]string{"PATH": pathVar})

	got, err := r.Resolve(strPtr("bash"))
	require.NoError(t, err)
	assert.Equal(t, canonical(t, shell), got)

	// a directory named like a shell is skipped
	_, err = r.Resolve(strPtr("zsh"))
	assert.ErrorIs(t, err, ErrShellNotFound)
	assert.Equal(t, CodeShellNotFound, Code(err))
}

func TestResolveBareNameWithoutPath(t *testing.T) {
	r := unixResolver(map[string]string{})

	_, err := r.Resolve(strPtr("sh"))
	assert.ErrorIs(t, err, ErrShellNotFound)
}

func TestResolveDefault(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix default chain")
	}

	t.Run("SHELL wins when valid", func(t *testing.T) {
		shell := writeExecutable(t, t.TempDir(), "custom", 0o755)
		r := unixResolver(map[string]string{"SHELL": shell})

		got, err := r.Resolve(nil)
		require.NoError(t, err)
		assert.Equal(t, canonical(t, shell), got)
	})

	t.Run("invalid SHELL falls through", func(t *testing.T) {
		r := unixResolver(map[string]string{"SHELL": "/nonexistent/cosmos/shell"})

		got, err := r.Resolve(nil)
		if err != nil {
			// hosts without zsh, bash or sh in /bin
			assert.ErrorIs(t, err, ErrShellNotFound)
			return
		}
		assert.True(t, filepath.IsAbs(got))
		assert.NotEqual(t, "/nonexistent/cosmos/shell", got)
	})

	t.Run("candidate order", func(t *testing.T) {
		r := unixResolver(map[string]string{"SHELL": "/usr/local/bin/fish"})
		assert.Equal(t,
			[]string{"/usr/local/bin/fish", "/bin/zsh", "/bin/bash", "/bin/sh"},
			r.defaultCandidates())

		r = unixResolver(map[string]string{})
		assert.Equal(t, []string{"/bin/zsh", "/bin/bash", "/bin/sh"}, r.defaultCandidates())
	})
}

func TestPathLookupMatchesExactName(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PTY sessions are unix only")
	}
	dir := t.TempDir()
	writeExecutable(t, dir, "bash.exe", 0o755)

	r := unixResolver(map[string]string{"PATH": dir})
	_, err := r.Resolve(strPtr("bash"))
	assert.ErrorIs(t, err, ErrShellNotFound, "no executable-suffix expansion on unix")

	got, err := r.Resolve(strPtr("bash.exe"))
	require.NoError(t, err)
	assert.Equal(t, canonical(t, filepath.Join(dir, "bash.exe")), got)
}

func TestIsAllowedShellName(t *testing.T) {
	for _, name := range []string{"bash", "ZSH", "Fish", "PowerShell.EXE", "nu", "elvish", "dash"} {
		assert.True(t, isAllowedShellName(name), name)
	}
	for _, name := range []string{"", "ksh", "tcsh", "bash.sh", "/bin/bash"} {
		assert.False(t, isAllowedShellName(name), name)
	}
}
