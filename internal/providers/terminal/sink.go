package terminal

import "errors"

// ErrSinkDisconnected is returned by sinks whose consumer has gone away.
// Any non-nil error from a sink is treated the same way.
var ErrSinkDisconnected = errors.New("sink disconnected")

// OutputSink receives base64-encoded output batches, in order.
type OutputSink interface {
	Send(payload string) error
}

// ExitSink receives a single true when the session's child has terminated.
type ExitSink interface {
	Send(exited bool) error
}

// OutputFunc adapts a function to OutputSink.
type OutputFunc func(payload string) error

func (f OutputFunc) Send(payload string) error { return f(payload) }

// ExitFunc adapts a function to ExitSink.
type ExitFunc func(exited bool) error

func (f ExitFunc) Send(exited bool) error { return f(exited) }
