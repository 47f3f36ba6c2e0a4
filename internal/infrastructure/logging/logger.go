package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component that logs about a session or a client.
const (
	SessionIDKey = "session_id"
	PIDKey       = "pid"
	RemoteKey    = "remote"
)

// Logger is the service logger. Children made with Named, With or the
// For* helpers share the level of the root they came from.
type Logger struct {
	*zap.Logger
}

// New builds the service logger at the given level. Production output is one
// JSON object per line, development output is coloured console text. Output
// goes to stderr unless sinks are given.
func New(level string, development bool, sinks ...zapcore.WriteSyncer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(lvl)

	out := zapcore.Lock(os.Stderr)
	if len(sinks) > 0 {
		out = zapcore.NewMultiWriteSyncer(sinks...)
	}

	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	core := zapcore.NewCore(newEncoder(development), out, atom)
	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// ForSession tags every entry with the session id and the child's pid.
func (l *Logger) ForSession(id string, pid uint32) *Logger {
	return l.With(SessionID(id), PID(pid))
}

// ForConnection tags every entry with the client's address.
func (l *Logger) ForConnection(remote string) *Logger {
	return l.With(zap.String(RemoteKey, remote))
}

// SessionID is the field used for session ids.
func SessionID(id string) zap.Field { return zap.String(SessionIDKey, id) }

// PID is the field used for child process ids.
func PID(pid uint32) zap.Field { return zap.Uint32(PIDKey, pid) }

// ParseLevel converts a level name to zapcore.Level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func newEncoder(development bool) zapcore.Encoder {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(enc)
	}
	return zapcore.NewJSONEncoder(enc)
}
