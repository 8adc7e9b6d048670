// Package log provides logging with automatic redaction of
// credential-looking values, built on top of the standard slog package.
//
// Pipeline stages are arbitrary external commands, and their command
// lines end up in log records. A command such as
// `mysql --password=hunter2` or an API token passed as an argument
// must not land in a log file verbatim. The RedactHandler masks:
//   - attributes whose key names a credential (password, token, api_key)
//   - name=VALUE and `--flag VALUE` tokens inside logged command lines
//   - values matching credential patterns (JWT, Bearer, AWS keys)
//
// Redaction applies at every log level, including verbose mode.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("stage started",
//	    "command", "mysql --password=hunter2", // value becomes --password=***REDACTED***
//	    "pid", 4211,
//	)
package log
