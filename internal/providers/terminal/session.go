package terminal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// process is a started child attached to the slave side of a PTY.
type process struct {
	cmd    *exec.Cmd
	master *os.File
	pid    uint32

	// reaped is set once Wait has returned; the pid may be reused after that
	reaped atomic.Bool
}

// Session is one running shell behind a PTY.
//
// It owns three goroutines: a reader that moves PTY output into an unbounded
// queue, a batcher that coalesces queued chunks and hands them to the output
// sink, and an exit watcher that reports the child's termination exactly once.
type Session struct {
	id        string
	shell     string
	cwd       string
	startedAt time.Time
	proc      *process

	writeMu sync.Mutex
	writer  io.Writer

	masterMu sync.Mutex
	master   *os.File
	rows     uint16
	cols     uint16

	// alive only ever goes from true to false
	alive         atomic.Bool
	killRequested atomic.Bool

	queue *chunkQueue
	out   OutputSink
	exit  ExitSink

	// flushed is closed once the batcher has handed its last batch to the sink
	flushed chan struct{}

	wg       sync.WaitGroup
	killOnce sync.Once
	onExit   func(*Session, ExitReason)

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

type sessionParams struct {
	id      string
	shell   string
	cwd     string
	rows    uint16
	cols    uint16
	out     OutputSink
	exit    ExitSink
	onExit  func(*Session, ExitReason)
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// newSession wraps a spawned process. Its goroutines run once start is called.
func newSession(proc *process, p sessionParams) *Session {
	s := &Session{
		id:        p.id,
		shell:     p.shell,
		cwd:       p.cwd,
		startedAt: time.Now(),
		proc:      proc,
		writer:    proc.master,
		master:    proc.master,
		rows:      p.rows,
		cols:      p.cols,
		queue:     newChunkQueue(),
		flushed:   make(chan struct{}),
		out:       p.out,
		exit:      p.exit,
		onExit:    p.onExit,
		logger:    p.logger.ForSession(p.id, proc.pid),
		metrics:   p.metrics,
	}
	s.alive.Store(true)
	return s
}

func (s *Session) start() {
	s.wg.Add(3)
	go s.readOutput(s.proc.master)
	go s.batchOutput()
	go s.watchExit()
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// PID returns the child's process id.
func (s *Session) PID() uint32 { return s.proc.pid }

// Alive reports whether the session is still running.
func (s *Session) Alive() bool { return s.alive.Load() }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.masterMu.Lock()
	rows, cols := s.rows, s.cols
	s.masterMu.Unlock()

	return SessionInfo{
		ID:        s.id,
		PID:       s.proc.pid,
		Shell:     s.shell,
		Cwd:       s.cwd,
		Rows:      rows,
		Cols:      cols,
		StartedAt: s.startedAt,
		Alive:     s.alive.Load(),
	}
}

// Write sends input bytes to the shell. Writes are serialized.
func (s *Session) Write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writer == nil {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
	}
	if _, err := s.writer.Write(p); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSessionClosed, s.id, err)
	}
	s.metrics.RecordInput(len(p))
	return nil
}

// Resize changes the PTY window size. Callers validate the dimensions.
func (s *Session) Resize(rows, cols uint16) error {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()

	if s.master == nil {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
	}
	if err := setWinsize(s.master, rows, cols); err != nil {
		return fmt.Errorf("%w: %s: resize: %v", ErrSessionClosed, s.id, err)
	}
	s.rows, s.cols = rows, cols
	return nil
}

// Kill releases the writer and the PTY master, hangs up the child and waits
// for all three goroutines. The reader is unblocked by the hangup: once the
// child's group is gone the master read fails with EIO. Only the first call does the work; every call
// returns after teardown is complete. No sink is called after Kill returns.
func (s *Session) Kill() {
	s.killOnce.Do(func() {
		s.killRequested.Store(true)

		s.writeMu.Lock()
		s.writer = nil
		s.writeMu.Unlock()

		s.masterMu.Lock()
		if s.master != nil {
			if err := s.master.Close(); err != nil {
				s.logger.Debug("closing pty master", zap.Error(err))
			}
			s.master = nil
		}
		s.masterMu.Unlock()

		if err := hangup(s.proc); err != nil {
			s.logger.Debug("hangup failed", zap.Error(err))
		}
		s.alive.Store(false)
	})
	s.wg.Wait()
}

// readOutput copies PTY output into the queue until EOF, a read error, or the
// consumer going away.
func (s *Session) readOutput(master *os.File) {
	defer s.wg.Done()
	defer func() {
		s.queue.close()
		s.alive.Store(false)
	}()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := master.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !s.queue.push(chunk) {
				s.logger.Debug("output consumer gone, reader stopping")
				return
			}
		}
		if err != nil {
			if !isExpectedReadErr(err) {
				s.logger.Debug("pty read ended", zap.Error(err))
			}
			return
		}
	}
}

// isExpectedReadErr covers the ways a PTY master read normally ends:
// EOF, EIO once the slave side is gone, or our own close.
func isExpectedReadErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}

// batchOutput coalesces queued chunks into batches of at most MaxBatchSize
// bytes, collecting for BatchWindow after the first chunk of each batch.
func (s *Session) batchOutput() {
	defer s.wg.Done()
	defer close(s.flushed)

	var carry []byte
	for {
		first := carry
		carry = nil
		if first == nil {
			chunk, ok := s.queue.pop()
			if !ok {
				return
			}
			first = chunk
		}

		batch := append(make([]byte, 0, 2*len(first)), first...)
		deadline := time.Now().Add(BatchWindow)
		for len(batch) < MaxBatchSize {
			chunk, ok := s.queue.popUntil(deadline)
			if !ok {
				break
			}
			if len(batch)+len(chunk) > MaxBatchSize {
				carry = chunk
				break
			}
			batch = append(batch, chunk...)
		}

		if err := s.out.Send(base64.StdEncoding.EncodeToString(batch)); err != nil {
			s.queue.disconnect()
			s.logger.Debug("output sink disconnected", zap.Error(err))
			return
		}
		s.metrics.RecordBatch(len(batch))
	}
}

// watchExit waits for the child to terminate, escalating to SIGKILL when the
// session was torn down and the child outlives the grace period, then
// delivers the single exit notification.
func (s *Session) watchExit() {
	defer s.wg.Done()

	waited := make(chan struct{})
	go func() {
		_ = s.proc.cmd.Wait()
		s.proc.reaped.Store(true)
		close(waited)
	}()

	reason := s.awaitExit(waited)
	s.alive.Store(false)

	fields := []zap.Field{zap.String("reason", string(reason))}
	if state := s.proc.cmd.ProcessState; state != nil {
		fields = append(fields, zap.Int("exit_code", state.ExitCode()))
	}
	s.logger.Info("terminal exited", fields...)
	s.metrics.SessionExited(string(reason))

	// output the child wrote before exiting goes out ahead of the exit event
	flushWait := time.NewTimer(GracePeriod)
	select {
	case <-s.flushed:
	case <-flushWait.C:
		s.logger.Warn("output still draining at exit", zap.Duration("waited", GracePeriod))
	}
	flushWait.Stop()

	if err := s.exit.Send(true); err != nil {
		s.logger.Debug("exit sink disconnected", zap.Error(err))
	}

	if s.onExit != nil {
		go s.onExit(s, reason)
	}
}

func (s *Session) awaitExit(waited <-chan struct{}) ExitReason {
	ticker := time.NewTicker(ExitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waited:
			if s.killRequested.Load() {
				return ExitHangup
			}
			return ExitNatural
		case <-ticker.C:
			if !s.alive.Load() {
				return s.terminate(waited)
			}
		}
	}
}

// terminate runs once the liveness flag has been cleared while the child may
// still be running.
func (s *Session) terminate(waited <-chan struct{}) ExitReason {
	if !s.killRequested.Load() {
		// the reader usually sees EOF just before Wait returns
		select {
		case <-waited:
			return ExitNatural
		case <-time.After(ExitPollInterval):
		}
	}

	if err := hangup(s.proc); err != nil {
		s.logger.Debug("hangup failed", zap.Error(err))
	}

	grace := time.NewTimer(GracePeriod)
	defer grace.Stop()

	select {
	case <-waited:
		return ExitHangup
	case <-grace.C:
	}

	s.logger.Warn("terminal ignored hangup, killing", zap.Duration("grace", GracePeriod))
	if err := forceKill(s.proc); err != nil {
		s.logger.Warn("force kill failed", zap.Error(err))
	}
	<-waited
	return ExitForced
}
