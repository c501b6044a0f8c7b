package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var slogLevels = map[Level]slog.Level{
	DEBUG: slog.LevelDebug,
	INFO:  slog.LevelInfo,
	WARN:  slog.LevelWarn,
	ERROR: slog.LevelError,
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Anything
// else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

var (
	level     = new(slog.LevelVar)
	redactPII atomic.Bool
	service   atomic.Value // string
	current   atomic.Pointer[slog.Logger]
)

func init() {
	redactPII.Store(true)
	service.Store("")
	current.Store(build(os.Stderr))
}

// Init names the service on every entry and sets the minimum level.
func Init(name string, l Level) {
	service.Store(name)
	SetLevel(l)
	current.Store(build(os.Stderr))
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) { current.Store(build(w)) }

// SetLevel sets the minimum log level.
func SetLevel(l Level) { level.Set(slogLevels[l]) }

// SetRedactPII enables or disables PII redaction.
func SetRedactPII(r bool) { redactPII.Store(r) }

// Slog returns the underlying structured logger.
func Slog() *slog.Logger { return current.Load() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { emit(slog.LevelDebug, msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { emit(slog.LevelInfo, msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { emit(slog.LevelWarn, msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { emit(slog.LevelError, msg, fields) }

func emit(l slog.Level, msg string, fields []interface{}) {
	current.Load().Log(context.Background(), l, msg, fields...)
}

func build(w io.Writer) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redactAttr})
	l := slog.New(h)
	if name, _ := service.Load().(string); name != "" {
		l = l.With("service", name)
	}
	return l
}

func redactAttr(groups []string, a slog.Attr) slog.Attr {
	if !redactPII.Load() || len(groups) > 0 {
		return a
	}
	switch v := a.Value.Any().(type) {
	case string:
		a.Value = slog.StringValue(redactPIIValue(a.Key, v))
	case error:
		a.Value = slog.StringValue(redactPIIValue(a.Key, v.Error()))
	}
	return a
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if key == slog.MessageKey || key == slog.LevelKey || key == slog.TimeKey {
		return val
	}
	if strings.Contains(key, "email") || key == "to" {
		return RedactEmail(val)
	}
	if key == "source" || key == "ip" || strings.Contains(key, "address") {
		return RedactIP(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
