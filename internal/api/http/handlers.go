package http

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
	"github.com/GriffinCanCode/cosmos-pty/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionManager is the part of terminal.Manager the REST API uses.
type SessionManager interface {
	List() []terminal.SessionInfo
	Get(sessionID string) (terminal.SessionInfo, error)
	Write(sessionID string, data []byte) error
	Resize(sessionID string, rows, cols uint16) error
	Kill(sessionID string) error
	Len() int
	BreakerState() resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager SessionManager
	tracer  *tracing.Tracer
	logger  *logging.Logger
	version string
}

// NewHandlers creates a new handler set
func NewHandlers(manager SessionManager, tracer *tracing.Tracer, logger *logging.Logger, version string) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tracer == nil {
		tracer = tracing.New("http", logger)
	}
	return &Handlers{
		manager: manager,
		tracer:  tracer,
		logger:  logger.Named("http"),
		version: version,
	}
}

// Register mounts the REST routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	sessions := r.Group("/sessions")
	sessions.GET("", h.ListSessions)
	sessions.GET("/:id", h.GetSession)
	sessions.POST("/:id/write", h.WriteSession)
	sessions.POST("/:id/resize", h.ResizeSession)
	sessions.DELETE("/:id", h.KillSession)
}

// WriteRequest is the body of POST /sessions/:id/write.
type WriteRequest struct {
	Data string `json:"data"`
}

// ResizeRequest is the body of POST /sessions/:id/resize.
type ResizeRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Health reports liveness plus session and spawn breaker state
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"service":       "cosmos-pty",
		"version":       h.version,
		"sessions":      h.manager.Len(),
		"spawn_breaker": h.manager.BreakerState().String(),
	})
}

// ListSessions lists all live sessions, oldest first
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	info, err := h.manager.Get(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// WriteSession forwards UTF-8 input to a session verbatim
func (h *Handlers) WriteSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, CodeInvalidRequest, err.Error())
		return
	}

	span, _ := h.tracer.StartSpan(c.Request.Context(), "session.write")
	span.SetTag("session_id", sessionID)
	defer h.tracer.Finish(span)

	if err := h.manager.Write(sessionID, []byte(req.Data)); err != nil {
		span.SetError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      sessionID,
		"written": len(req.Data),
	})
}

// ResizeSession changes a session's terminal dimensions
func (h *Handlers) ResizeSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, CodeInvalidRequest, err.Error())
		return
	}

	span, _ := h.tracer.StartSpan(c.Request.Context(), "session.resize")
	span.SetTag("session_id", sessionID)
	span.SetTag("size", fmt.Sprintf("%dx%d", req.Rows, req.Cols))
	defer h.tracer.Finish(span)

	rows, cols, err := terminal.Dimensions(req.Rows, req.Cols)
	if err == nil {
		err = h.manager.Resize(sessionID, rows, cols)
	}
	if err != nil {
		span.SetError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      sessionID,
		"rows":    req.Rows,
		"cols":    req.Cols,
	})
}

// KillSession terminates a session and removes it from the registry
func (h *Handlers) KillSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	span, _ := h.tracer.StartSpan(c.Request.Context(), "session.kill")
	span.SetTag("session_id", sessionID)
	defer h.tracer.Finish(span)

	if err := h.manager.Kill(sessionID); err != nil {
		span.SetError(err)
		respondError(c, err)
		return
	}

	h.logger.Info("session killed over REST",
		logging.SessionID(sessionID),
		zap.String("trace_id", string(tracing.GetTraceID(c.Request.Context()))),
	)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      sessionID,
	})
}

// sessionParam rejects malformed ids before they reach the manager.
func sessionParam(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if !id.IsSessionID(sessionID) {
		respondBadRequest(c, terminal.CodeInvalidSessionID, fmt.Sprintf("invalid session id %q", sessionID))
		return "", false
	}
	return sessionID, true
}
