package ws

// Client to server message types.
const (
	TypeCreate = "create"
	TypeWrite  = "write"
	TypeResize = "resize"
	TypeKill   = "kill"
	TypePing   = "ping"
)

// Server to client message types.
const (
	TypeCreated = "created"
	TypeKilled  = "killed"
	TypePong    = "pong"
	TypeOutput  = "output"
	TypeExit    = "exit"
	TypeError   = "error"
)

// CodeInvalidMessage marks a frame that is not valid JSON or has an unknown type.
const CodeInvalidMessage = "InvalidMessage"

// ClientMessage is any frame sent by the UI. Fields unused by a type are ignored.
type ClientMessage struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id,omitempty"`
	ID        string  `json:"id,omitempty"`
	Shell     *string `json:"shell,omitempty"`
	Cwd       string  `json:"cwd,omitempty"`
	Rows      int     `json:"rows,omitempty"`
	Cols      int     `json:"cols,omitempty"`
	Data      string  `json:"data,omitempty"`
}

// ServerMessage is any frame sent to the UI.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	ID        string `json:"id,omitempty"`
	PID       uint32 `json:"pid,omitempty"`
	// Data is base64 for output frames.
	Data    string `json:"data,omitempty"`
	Exited  bool   `json:"exited,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
