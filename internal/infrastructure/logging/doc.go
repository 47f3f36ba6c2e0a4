// Package logging builds the service's zap logger.
//
// Production output is one JSON object per line; development output is
// coloured console text. Both go to stderr so stdout stays free for CLI
// output. Session and connection loggers carry the shared field keys
// defined here.
//
//	logger, _ := logging.New("info", false)
//	sessLog := logger.Named("terminal").ForSession(id, pid)
//	sessLog.Debug("reader stopped", zap.Error(err))
package logging
