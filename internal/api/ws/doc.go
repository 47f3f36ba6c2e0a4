// Package ws streams terminal sessions over a WebSocket.
//
// One connection may own many sessions. Frames are JSON, encoded with sonic.
//
// Message Types (Client → Server):
//   - create: {request_id, shell?, cwd, rows, cols} spawns a session
//   - write: {id, data} forwards UTF-8 input verbatim
//   - resize: {id, rows, cols}
//   - kill: {id} tears the session down
//   - ping: keep-alive
//
// Message Types (Server → Client):
//   - created: {request_id, id, pid}
//   - output: {id, data} base64 PTY output, ordered per session
//   - exit: {id, exited: true}, exactly once per session
//   - killed: {request_id, id}
//   - pong
//   - error: {request_id, code, message}
//
// A session's output and exit frames never precede its created frame.
// When the socket closes every session it created is killed.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, ws.Options{Logger: logger, Metrics: metrics})
//	router.GET("/terminal", handler.HandleConnection)
package ws
