// Package terminal multiplexes interactive shells behind pseudo-terminals.
//
// A Manager owns a registry of Sessions keyed by a random UUID. Each Session
// wraps one shell attached to the slave side of a PTY and runs three
// goroutines:
//   - reader: blocking 4 KiB reads from the PTY master into an unbounded queue
//   - batcher: coalesces queued output for up to 10ms (64 KiB max) and sends
//     it base64-encoded to the session's OutputSink
//   - exit watcher: waits for the child, escalates hangup to SIGKILL after a
//     2s grace period, and sends exactly one true to the ExitSink
//
// Writes and resizes lock separate handles, so a resize never queues behind
// a large write. The registry lock only guards the map; teardown always
// happens outside it.
//
// Shells are resolved by a Resolver: absolute paths must be regular files,
// bare names must be on a small allow-list and found on PATH, and no request
// falls back to the platform default chain.
//
// Example Usage:
//
//	mgr := terminal.NewManager(terminal.Options{Logger: logger})
//	info, err := mgr.Create(terminal.CreateRequest{Cwd: home, Rows: 24, Cols: 80},
//		terminal.OutputFunc(func(b64 string) error { return ws.SendOutput(b64) }),
//		terminal.ExitFunc(func(bool) error { return ws.SendExit() }),
//	)
//	mgr.Write(info.ID, []byte("ls -la\n"))
//	mgr.Resize(info.ID, 40, 120)
//	mgr.Kill(info.ID)
//
// Failures carry sentinel errors (ErrShellNotFound, ErrSessionClosed, ...);
// Code maps them to the wire codes shared with UI clients.
package terminal
