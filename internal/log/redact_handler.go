package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace credential-looking values.
const MaskValue = "***REDACTED***"

// credentialKeywords match against attribute keys and command-line
// flag or variable names, compared with dashes and underscores
// stripped. The bare words "auth" and "key" are excluded: they match
// too many ordinary arguments ("--author", "primary_key", "keyboard").
var credentialKeywords = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"apikey",
	"accesskey",
	"privatekey",
	"secretkey",
	"credential",
	"authorization",
}

// credentialValuePatterns match values that are credentials no matter
// what they are named. A long-hex pattern is deliberately absent: run
// fingerprints are 64 hex characters and must stay readable in logs.
var credentialValuePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// RedactHandler wraps an slog.Handler and masks credential-looking
// values before records reach the underlying handler. Pipeline stages
// are arbitrary commands, so logged command lines can carry secrets
// the way `mysql --password=...` or `curl -u user:pass` do; the mask
// is applied per token so the rest of the command line stays readable.
type RedactHandler struct {
	// handler is the underlying slog handler that receives redacted records.
	handler slog.Handler
}

// NewRedactHandler creates a new RedactHandler wrapping the given handler.
// All log attributes are redacted before being passed to the underlying
// handler. If handler is nil, slog.Default().Handler() is used.
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record's attributes and passes it to the underlying handler.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})

	return h.handler.Handle(ctx, redacted)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are redacted before being added.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redactedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redactedAttrs[i] = h.redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(redactedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

// redactAttr redacts a single attribute, recursively handling groups.
func (h *RedactHandler) redactAttr(a slog.Attr) slog.Attr {
	// Handle groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redactedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			redactedAttrs[i] = h.redactAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redactedAttrs...)}
	}

	// A credential-looking key masks the whole value
	if isCredentialName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if isCredentialValue(strVal) {
			return slog.String(a.Key, MaskValue)
		}
		// Command lines get per-token treatment
		if redacted := redactCommandLine(strVal); redacted != strVal {
			return slog.String(a.Key, redacted)
		}
	}

	return a
}

// isCredentialName checks if a key, flag, or variable name looks like
// it names a credential. Dashes and underscores are stripped before
// matching so "--api-key", "api_key", and "APIKEY" are all caught.
func isCredentialName(name string) bool {
	normalized := strings.ToLower(name)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	for _, keyword := range credentialKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// isCredentialValue checks if a value matches credential patterns.
func isCredentialValue(value string) bool {
	for _, pattern := range credentialValuePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactCommandLine masks credential-looking tokens inside a command
// line. Three shapes are handled: name=VALUE (flag or environment
// style), a credential flag followed by its value in the next token,
// and bare tokens matching a credential value pattern. The line is
// returned unchanged when nothing matches.
func redactCommandLine(line string) string {
	fields := strings.Fields(line)
	changed := false
	maskNext := false

	for i, field := range fields {
		if maskNext {
			fields[i] = MaskValue
			maskNext = false
			changed = true
			continue
		}

		if name, _, found := strings.Cut(field, "="); found {
			if isCredentialName(name) {
				fields[i] = name + "=" + MaskValue
				changed = true
			}
			continue
		}

		if strings.HasPrefix(field, "-") && isCredentialName(field) {
			maskNext = true
			continue
		}

		if isCredentialValue(field) {
			fields[i] = MaskValue
			changed = true
		}
	}

	if !changed {
		return line
	}
	return strings.Join(fields, " ")
}

// NewLogger creates a new slog.Logger with credential redaction.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//
// Redaction applies at every level; verbose only raises verbosity.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewRedactHandler(textHandler))
}

// NewJSONLogger creates a new slog.Logger with credential redaction
// that outputs JSON format. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	jsonHandler := slog.NewJSONHandler(w, opts)
	return slog.New(NewRedactHandler(jsonHandler))
}
