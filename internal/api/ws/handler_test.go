package ws

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = 5 * time.Second

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	frames chan ServerMessage
}

func setupServer(t *testing.T) (*terminal.Manager, *monitoring.Metrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	mgr := terminal.NewManager(terminal.Options{Metrics: metrics})
	t.Cleanup(mgr.KillAll)

	router := gin.New()
	router.GET("/terminal", NewHandler(mgr, Options{Metrics: metrics}).HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return mgr, metrics, "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminal"
}

func dial(t *testing.T, url string) *testClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	c := &testClient{t: t, conn: conn, frames: make(chan ServerMessage, 256)}
	go func() {
		defer close(c.frames)
		for {
			var msg ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.frames <- msg
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (c *testClient) send(msg map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// await returns the first frame matching match, skipping the rest.
func (c *testClient) await(match func(ServerMessage) bool) ServerMessage {
	c.t.Helper()
	timeout := time.After(eventually)
	for {
		select {
		case msg, ok := <-c.frames:
			require.True(c.t, ok, "connection closed while waiting")
			if match(msg) {
				return msg
			}
		case <-timeout:
			c.t.Fatal("timed out waiting for frame")
		}
	}
}

func ofType(typ string) func(ServerMessage) bool {
	return func(m ServerMessage) bool { return m.Type == typ }
}

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("PTY sessions are unix only")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	return "/bin/sh"
}

func (c *testClient) create(shell string) ServerMessage {
	c.t.Helper()
	c.send(map[string]any{
		"type":       TypeCreate,
		"request_id": "req-create",
		"shell":      shell,
		"cwd":        c.t.TempDir(),
		"rows":       24,
		"cols":       80,
	})
	msg := c.await(func(m ServerMessage) bool { return m.RequestID == "req-create" })
	require.Equal(c.t, TypeCreated, msg.Type, "create failed: %s %s", msg.Code, msg.Message)
	return msg
}

func TestPingPong(t *testing.T) {
	_, _, url := setupServer(t)
	c := dial(t, url)

	c.send(map[string]any{"type": TypePing, "request_id": "p1"})
	msg := c.await(ofType(TypePong))
	assert.Equal(t, "p1", msg.RequestID)
}

func TestCreateWriteOutput(t *testing.T) {
	shell := requireShell(t)
	mgr, metrics, url := setupServer(t)
	c := dial(t, url)

	created := c.create(shell)
	assert.NotEmpty(t, created.ID)
	assert.NotZero(t, created.PID)
	assert.Equal(t, 1, mgr.Len())

	c.send(map[string]any{"type": TypeWrite, "id": created.ID, "data": "echo ws-$((40+2))\n"})

	var output strings.Builder
	c.await(func(m ServerMessage) bool {
		if m.Type != TypeOutput || m.ID != created.ID {
			return false
		}
		raw, err := base64.StdEncoding.DecodeString(m.Data)
		require.NoError(t, err)
		output.Write(raw)
		return strings.Contains(output.String(), "ws-42")
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSConnections))
	assert.Greater(t, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", TypeOutput)), float64(0))
}

func TestResizeAndKill(t *testing.T) {
	shell := requireShell(t)
	mgr, _, url := setupServer(t)
	c := dial(t, url)

	created := c.create(shell)

	c.send(map[string]any{"type": TypeResize, "request_id": "r1", "id": created.ID, "rows": 40, "cols": 120})
	c.send(map[string]any{"type": TypeKill, "request_id": "k1", "id": created.ID})

	exit := c.await(ofType(TypeExit))
	assert.Equal(t, created.ID, exit.ID)
	assert.True(t, exit.Exited)

	killed := c.await(func(m ServerMessage) bool { return m.RequestID == "k1" })
	assert.Equal(t, TypeKilled, killed.Type)
	assert.Equal(t, created.ID, killed.ID)
	assert.Equal(t, 0, mgr.Len())

	c.send(map[string]any{"type": TypeKill, "request_id": "k2", "id": created.ID})
	again := c.await(func(m ServerMessage) bool { return m.RequestID == "k2" })
	assert.Equal(t, TypeError, again.Type)
	assert.Equal(t, terminal.CodeSessionNotFound, again.Code)
}

func TestNaturalExitSendsExitOnce(t *testing.T) {
	shell := requireShell(t)
	mgr, _, url := setupServer(t)
	c := dial(t, url)

	created := c.create(shell)
	c.send(map[string]any{"type": TypeWrite, "id": created.ID, "data": "exit\n"})

	exit := c.await(ofType(TypeExit))
	assert.Equal(t, created.ID, exit.ID)
	require.Eventually(t, func() bool { return mgr.Len() == 0 }, eventually, 10*time.Millisecond)

	c.send(map[string]any{"type": TypePing, "request_id": "after"})
	c.await(func(m ServerMessage) bool {
		assert.NotEqual(t, TypeExit, m.Type, "exit delivered twice")
		return m.Type == TypePong
	})
}

func TestDisconnectKillsOwnedSessions(t *testing.T) {
	shell := requireShell(t)
	mgr, metrics, url := setupServer(t)

	first := dial(t, url)
	second := dial(t, url)
	first.create(shell)
	first.create(shell)
	kept := second.create(shell)
	require.Equal(t, 3, mgr.Len())

	require.NoError(t, first.conn.Close())

	require.Eventually(t, func() bool { return mgr.Len() == 1 }, eventually, 10*time.Millisecond)
	_, err := mgr.Get(kept.ID)
	assert.NoError(t, err, "other connection's session must survive")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 1
	}, eventually, 10*time.Millisecond)
}

func TestErrorFrames(t *testing.T) {
	_, _, url := setupServer(t)
	c := dial(t, url)

	tests := []struct {
		name     string
		msg      map[string]any
		wantCode string
	}{
		{"unknown type", map[string]any{"type": "launch", "request_id": "e1"}, CodeInvalidMessage},
		{"malformed id", map[string]any{"type": TypeWrite, "request_id": "e2", "id": "nope", "data": "x"}, terminal.CodeInvalidSessionID},
		{"unknown session", map[string]any{"type": TypeResize, "request_id": "e3", "id": "0b6f1e4c-2d7a-4f3e-9c1b-5a8d7e6f4c3b", "rows": 10, "cols": 10}, terminal.CodeSessionNotFound},
		{"bad dimensions", map[string]any{"type": TypeResize, "request_id": "e4", "id": "0b6f1e4c-2d7a-4f3e-9c1b-5a8d7e6f4c3b", "rows": 0, "cols": 10}, terminal.CodeInvalidDimensions},
		{"bad cwd", map[string]any{"type": TypeCreate, "request_id": "e5", "cwd": "/definitely/not/here", "rows": 24, "cols": 80}, terminal.CodeInvalidWorkingDirectory},
		{"shell not allowed", map[string]any{"type": TypeCreate, "request_id": "e6", "shell": "python3", "cwd": os.TempDir(), "rows": 24, "cols": 80}, terminal.CodeShellNotAllowed},
		{"create rows past uint16", map[string]any{"type": TypeCreate, "request_id": "e7", "cwd": os.TempDir(), "rows": 70000, "cols": 80}, terminal.CodeInvalidDimensions},
		{"create rows wrap to valid", map[string]any{"type": TypeCreate, "request_id": "e8", "cwd": os.TempDir(), "rows": 65560, "cols": 80}, terminal.CodeInvalidDimensions},
		{"create negative cols", map[string]any{"type": TypeCreate, "request_id": "e9", "cwd": os.TempDir(), "rows": 24, "cols": -1}, terminal.CodeInvalidDimensions},
		{"resize rows past uint16", map[string]any{"type": TypeResize, "request_id": "e10", "id": "0b6f1e4c-2d7a-4f3e-9c1b-5a8d7e6f4c3b", "rows": 70000, "cols": 80}, terminal.CodeInvalidDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			c.send(tt.msg)
			reqID := tt.msg["request_id"].(string)
			msg := c.await(func(m ServerMessage) bool { return m.RequestID == reqID })
			assert.Equal(t, TypeError, msg.Type)
			assert.Equal(t, tt.wantCode, msg.Code)
			assert.NotEmpty(t, msg.Message)
		})
	}
}

func TestMalformedFrame(t *testing.T) {
	_, _, url := setupServer(t)
	c := dial(t, url)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := c.await(ofType(TypeError))
	assert.Equal(t, CodeInvalidMessage, msg.Code)
	assert.Empty(t, msg.RequestID)

	// a well-formed envelope with a mistyped field keeps its correlation id
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"resize","request_id":"typed-1","id":"0b6f1e4c-2d7a-4f3e-9c1b-5a8d7e6f4c3b","rows":"tall","cols":80}`)))
	msg = c.await(func(m ServerMessage) bool { return m.RequestID == "typed-1" })
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, CodeInvalidMessage, msg.Code)
}

func TestOriginCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(terminal.NewManager(terminal.Options{}), Options{
		AllowedOrigins: []string{"tauri://localhost"},
	})
	router.GET("/terminal", handler.HandleConnection)
	srv := httptest.NewServer(router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminal"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "tauri://localhost")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestServerMessageWireShape(t *testing.T) {
	data, err := json.Marshal(ServerMessage{Type: TypeExit, ID: "abc", Exited: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"exit","id":"abc","exited":true}`, string(data))
}

func TestHandlerCloseDisconnectsClients(t *testing.T) {
	shell := requireShell(t)
	gin.SetMode(gin.TestMode)

	mgr := terminal.NewManager(terminal.Options{})
	t.Cleanup(mgr.KillAll)
	handler := NewHandler(mgr, Options{})
	router := gin.New()
	router.GET("/terminal", handler.HandleConnection)
	srv := httptest.NewServer(router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminal"

	c := dial(t, url)
	c.create(shell)
	require.Equal(t, 1, mgr.Len())

	handler.Close()

	require.Eventually(t, func() bool { return mgr.Len() == 0 }, eventually, 10*time.Millisecond)
	select {
	case _, ok := <-c.frames:
		for ok {
			_, ok = <-c.frames
		}
	case <-time.After(eventually):
		t.Fatal("client was not disconnected")
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
