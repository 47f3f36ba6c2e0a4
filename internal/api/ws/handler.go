package ws

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
	"github.com/GriffinCanCode/cosmos-pty/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 10 * time.Second
	maxMessageSize      = 1 << 20
)

// SessionManager is the part of terminal.Manager a connection drives.
type SessionManager interface {
	Create(req terminal.CreateRequest, out terminal.OutputSink, exit terminal.ExitSink) (*terminal.SessionInfo, error)
	Write(sessionID string, data []byte) error
	Resize(sessionID string, rows, cols uint16) error
	Kill(sessionID string) error
	KillSessions(ids []string)
}

// Options configures a Handler.
type Options struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
	// WriteTimeout bounds each frame write; 0 selects 10s.
	WriteTimeout time.Duration
}

// Handler manages WebSocket connections
type Handler struct {
	manager      SessionManager
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *logging.Logger
	metrics      *monitoring.Metrics

	mu     sync.Mutex
	conns  map[*connection]struct{}
	closed bool
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager SessionManager, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	origins := opts.AllowedOrigins
	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
			},
		},
		writeTimeout: writeTimeout,
		logger:       logger.Named("ws"),
		metrics:      opts.Metrics,
		conns:        make(map[*connection]struct{}),
	}
}

// HandleConnection upgrades the request and serves terminal commands until
// the socket closes. Every session created on the connection is killed then.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	conn := &connection{
		ws:      ws,
		handler: h,
		logger:  h.logger.ForConnection(c.ClientIP()),
		done:    make(chan struct{}),
		owned:   make(map[string]struct{}),
	}
	if !h.track(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	defer h.untrack(conn)

	conn.logger.Debug("websocket connected")
	conn.serve()
}

// Close disconnects every client and refuses new ones. Each connection then
// kills the sessions it owns. It does not wait for that to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*connection, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.markDone()
	}
	if len(conns) > 0 {
		h.logger.Info("closed websocket connections", zap.Int("count", len(conns)))
	}
}

func (h *Handler) track(conn *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Handler) untrack(conn *connection) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// connection is one websocket client. Frame writes are serialized by writeMu
// since gorilla allows a single concurrent writer.
type connection struct {
	ws      *websocket.Conn
	handler *Handler
	logger  *logging.Logger

	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once

	mu    sync.Mutex
	owned map[string]struct{}
}

func (c *connection) serve() {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			c.sendError(requestID(data), CodeInvalidMessage, fmt.Sprintf("malformed message: %v", err))
			continue
		}
		c.handler.metrics.RecordWSMessage("in", msg.Type)
		c.dispatch(msg)
	}
}

// requestID recovers the correlation id from a frame that did not decode as
// a whole, so the error reply can still be matched by the client.
func requestID(data []byte) string {
	var envelope struct {
		RequestID string `json:"request_id"`
	}
	if err := sonic.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.RequestID
}

func (c *connection) dispatch(msg ClientMessage) {
	switch msg.Type {
	case TypeCreate:
		c.handleCreate(msg)
	case TypeWrite:
		if sid, ok := c.sessionID(msg); ok {
			c.reply(msg, c.handler.manager.Write(sid, []byte(msg.Data)), nil)
		}
	case TypeResize:
		if sid, ok := c.sessionID(msg); ok {
			rows, cols, err := terminal.Dimensions(msg.Rows, msg.Cols)
			if err == nil {
				err = c.handler.manager.Resize(sid, rows, cols)
			}
			c.reply(msg, err, nil)
		}
	case TypeKill:
		if sid, ok := c.sessionID(msg); ok {
			err := c.handler.manager.Kill(sid)
			c.disown(sid)
			c.reply(msg, err, &ServerMessage{Type: TypeKilled, RequestID: msg.RequestID, ID: sid})
		}
	case TypePing:
		_ = c.send(ServerMessage{Type: TypePong, RequestID: msg.RequestID})
	default:
		c.sendError(msg.RequestID, CodeInvalidMessage, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *connection) handleCreate(msg ClientMessage) {
	rows, cols, err := terminal.Dimensions(msg.Rows, msg.Cols)
	if err != nil {
		c.sendError(msg.RequestID, terminal.Code(err), err.Error())
		return
	}

	stream := &sessionStream{conn: c, ready: make(chan struct{})}
	info, err := c.handler.manager.Create(terminal.CreateRequest{
		Shell: msg.Shell,
		Cwd:   msg.Cwd,
		Rows:  rows,
		Cols:  cols,
	}, terminal.OutputFunc(stream.output), terminal.ExitFunc(stream.exit))
	if err != nil {
		c.sendError(msg.RequestID, terminal.Code(err), err.Error())
		return
	}

	stream.id = info.ID
	c.own(info.ID)
	_ = c.send(ServerMessage{
		Type:      TypeCreated,
		RequestID: msg.RequestID,
		ID:        info.ID,
		PID:       info.PID,
	})
	// output and exit frames may only follow the created reply
	close(stream.ready)
}

func (c *connection) sessionID(msg ClientMessage) (string, bool) {
	if !id.IsSessionID(msg.ID) {
		c.sendError(msg.RequestID, terminal.CodeInvalidSessionID, fmt.Sprintf("invalid session id %q", msg.ID))
		return "", false
	}
	return msg.ID, true
}

// reply reports err, or sends ok when the operation has an acknowledgement.
func (c *connection) reply(msg ClientMessage, err error, ok *ServerMessage) {
	if err != nil {
		c.sendError(msg.RequestID, terminal.Code(err), err.Error())
		return
	}
	if ok != nil {
		_ = c.send(*ok)
	}
}

func (c *connection) sendError(requestID, code, message string) {
	_ = c.send(ServerMessage{
		Type:      TypeError,
		RequestID: requestID,
		Code:      code,
		Message:   message,
	})
}

// send writes one frame. Once the socket is gone it returns
// terminal.ErrSinkDisconnected so session batchers stop.
func (c *connection) send(msg ServerMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", msg.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return terminal.ErrSinkDisconnected
	default:
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.handler.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
		c.markDone()
		return fmt.Errorf("%w: %v", terminal.ErrSinkDisconnected, err)
	}
	c.handler.metrics.RecordWSMessage("out", msg.Type)
	return nil
}

// markDone stops all further writes and unblocks the read loop.
func (c *connection) markDone() {
	c.doneOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *connection) teardown() {
	c.markDone()

	c.mu.Lock()
	ids := make([]string, 0, len(c.owned))
	for sid := range c.owned {
		ids = append(ids, sid)
	}
	c.owned = make(map[string]struct{})
	c.mu.Unlock()

	if len(ids) > 0 {
		c.handler.manager.KillSessions(ids)
	}
	c.logger.Debug("websocket closed", zap.Int("sessions_killed", len(ids)))
}

func (c *connection) own(sid string) {
	c.mu.Lock()
	c.owned[sid] = struct{}{}
	c.mu.Unlock()
}

func (c *connection) disown(sid string) {
	c.mu.Lock()
	delete(c.owned, sid)
	c.mu.Unlock()
}

// sessionStream adapts one session's sinks to connection frames.
type sessionStream struct {
	conn  *connection
	id    string
	ready chan struct{}
}

func (s *sessionStream) wait() bool {
	select {
	case <-s.ready:
		return true
	case <-s.conn.done:
		return false
	}
}

func (s *sessionStream) output(payload string) error {
	if !s.wait() {
		return terminal.ErrSinkDisconnected
	}
	return s.conn.send(ServerMessage{Type: TypeOutput, ID: s.id, Data: payload})
}

func (s *sessionStream) exit(exited bool) error {
	if !s.wait() {
		return terminal.ErrSinkDisconnected
	}
	s.conn.disown(s.id)
	return s.conn.send(ServerMessage{Type: TypeExit, ID: s.id, Exited: exited})
}
