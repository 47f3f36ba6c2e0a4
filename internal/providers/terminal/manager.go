package terminal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/cosmos-pty/internal/shared/id"
	"go.uber.org/zap"
)

// spawnFunc starts a shell on a fresh PTY.
type spawnFunc func(shell, cwd string, rows, cols uint16) (*process, error)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
	Resolver *Resolver
	// MaxSessions caps registered sessions; 0 means unlimited.
	MaxSessions int
	// BreakerFailures is the number of consecutive spawn failures that open the spawn breaker.
	BreakerFailures int
	// BreakerCooldown is how long the spawn breaker stays open.
	BreakerCooldown time.Duration
}

// Manager is the registry of live sessions, keyed by session id.
//
// The lock only guards the map. Session I/O and teardown always happen after
// it is released, so a slow kill never blocks writes to other sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	resolver    *Resolver
	breaker     *resilience.Breaker
	maxSessions int
	spawn       spawnFunc

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewManager creates a new session manager
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewResolver()
	}
	failures := opts.BreakerFailures
	if failures <= 0 {
		failures = 5
	}

	m := &Manager{
		sessions:    make(map[string]*Session),
		resolver:    resolver,
		maxSessions: opts.MaxSessions,
		spawn:       spawnPTY,
		logger:      logger.Named("terminal"),
		metrics:     opts.Metrics,
	}

	m.breaker = resilience.New("pty-spawn", resilience.Settings{
		Cooldown: opts.BreakerCooldown,
		ShouldTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		Counts: func(err error) bool {
			return errors.Is(err, ErrSpawnFailed)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			m.logger.Warn("spawn breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.metrics.SetBreakerState(name, int(to))
		},
	})
	m.metrics.SetBreakerState(m.breaker.Name(), int(resilience.StateClosed))

	return m
}

// Create validates the request, spawns the shell and registers the session.
// Nothing is allocated and no entry is created when it fails.
func (m *Manager) Create(req CreateRequest, out OutputSink, exit ExitSink) (*SessionInfo, error) {
	info, err := m.create(req, out, exit)
	if err != nil {
		m.metrics.CreateFailed(Code(err))
		m.logger.Warn("create session failed",
			zap.String("code", Code(err)),
			zap.String("cwd", req.Cwd),
			zap.Error(err),
		)
		return nil, err
	}
	return info, nil
}

func (m *Manager) create(req CreateRequest, out OutputSink, exit ExitSink) (*SessionInfo, error) {
	if out == nil || exit == nil {
		return nil, errors.New("terminal: output and exit sinks are required")
	}
	if err := ValidateDimensions(req.Rows, req.Cols); err != nil {
		return nil, err
	}

	shell, err := m.resolver.Resolve(req.Shell)
	if err != nil {
		return nil, err
	}

	cwd, err := validateWorkingDir(req.Cwd)
	if err != nil {
		return nil, err
	}

	if m.atCapacity() {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.maxSessions)
	}

	start := time.Now()
	proc, err := resilience.Execute(m.breaker, func() (*process, error) {
		return m.spawn(shell, cwd, req.Rows, req.Cols)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, fmt.Errorf("spawn temporarily disabled after repeated failures: %w", err)
		}
		return nil, err
	}
	spawnTime := time.Since(start)

	sess := newSession(proc, sessionParams{
		id:      string(id.NewSessionID()),
		shell:   shell,
		cwd:     cwd,
		rows:    req.Rows,
		cols:    req.Cols,
		out:     out,
		exit:    exit,
		onExit:  m.reap,
		logger:  m.logger,
		metrics: m.metrics,
	})

	// registered before its goroutines start so a fast exit can always be reaped
	m.mu.Lock()
	m.sessions[sess.id] = sess
	sess.start()
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SessionCreated(spawnTime)
	m.metrics.SetSessionsActive(count)
	m.logger.Info("terminal session created",
		logging.SessionID(sess.id),
		logging.PID(proc.pid),
		zap.String("shell", shell),
		zap.String("cwd", cwd),
		zap.Uint16("rows", req.Rows),
		zap.Uint16("cols", req.Cols),
		zap.Duration("spawn", spawnTime),
	)

	info := sess.Info()
	return &info, nil
}

func (m *Manager) atCapacity() bool {
	if m.maxSessions <= 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) >= m.maxSessions
}

// validateWorkingDir requires an existing directory.
func validateWorkingDir(cwd string) (string, error) {
	if strings.TrimSpace(cwd) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidWorkingDirectory)
	}
	info, err := os.Stat(cwd)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidWorkingDirectory, cwd, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkingDirectory, cwd)
	}
	return filepath.Clean(cwd), nil
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// Write sends input to a session
func (m *Manager) Write(sessionID string, data []byte) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return sess.Write(data)
}

// Resize changes terminal dimensions
func (m *Manager) Resize(sessionID string, rows, cols uint16) error {
	if err := ValidateDimensions(rows, cols); err != nil {
		return err
	}
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return sess.Resize(rows, cols)
}

// Kill removes a session and tears it down. It returns once the session's
// goroutines have finished.
func (m *Manager) Kill(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	m.metrics.SetSessionsActive(count)
	sess.Kill()
	m.logger.Info("terminal session killed", logging.SessionID(sessionID))
	return nil
}

// KillAll drains the registry and tears every session down concurrently.
func (m *Manager) KillAll() {
	m.mu.Lock()
	drained := make([]*Session, 0, len(m.sessions))
	for sid, sess := range m.sessions {
		drained = append(drained, sess)
		delete(m.sessions, sid)
	}
	m.mu.Unlock()

	if len(drained) == 0 {
		return
	}
	m.metrics.SetSessionsActive(0)

	var wg sync.WaitGroup
	for _, sess := range drained {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Kill()
		}(sess)
	}
	wg.Wait()

	m.logger.Info("all terminal sessions killed", zap.Int("count", len(drained)))
}

// KillSessions kills each listed session that is still registered.
// Unknown ids are skipped.
func (m *Manager) KillSessions(ids []string) {
	var wg sync.WaitGroup
	for _, sid := range ids {
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			if err := m.Kill(sid); err != nil && !errors.Is(err, ErrSessionNotFound) {
				m.logger.Warn("kill session failed", logging.SessionID(sid), zap.Error(err))
			}
		}(sid)
	}
	wg.Wait()
}

// reap removes a session whose child exited on its own. It runs on its own
// goroutine, after the session's exit notification.
func (m *Manager) reap(sess *Session, reason ExitReason) {
	m.mu.Lock()
	current, ok := m.sessions[sess.id]
	if ok && current == sess {
		delete(m.sessions, sess.id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok || current != sess {
		return
	}

	m.metrics.SetSessionsActive(count)
	sess.Kill()
	m.logger.Debug("terminal session reaped",
		logging.SessionID(sess.id),
		zap.String("reason", string(reason)),
	)
}

// Get returns a snapshot of one session
func (m *Manager) Get(sessionID string) (SessionInfo, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

// List returns snapshots of all sessions, oldest first
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Len returns the number of registered sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// BreakerState reports the spawn breaker state.
func (m *Manager) BreakerState() resilience.State {
	return m.breaker.State()
}
