// Package logger is the process-wide structured logger.
//
// Components log through the package-level functions; the handler behind
// them is swapped once at startup from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
}

var (
	level slog.LevelVar

	mu      sync.RWMutex
	format  = "text"
	output  io.Writer = os.Stdout
	slogger *slog.Logger
)

func init() {
	rebuild()
}

// rebuild installs a handler for the current output and format. The level
// is read through the LevelVar, so SetLevel does not need a rebuild.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: &level}
	if format == "json" {
		slogger = slog.New(slog.NewJSONHandler(output, opts))
		return
	}
	slogger = slog.New(slog.NewTextHandler(output, opts))
}

// Init applies cfg to the stdout logger. Empty fields keep their current value.
func Init(cfg Config) error {
	InitWithWriter(os.Stdout, cfg.Level, cfg.Format)
	return nil
}

// InitWithWriter points the logger at w. Used by tests.
func InitWithWriter(w io.Writer, lvl, form string) {
	mu.Lock()
	output = w
	mu.Unlock()

	SetLevel(lvl)
	SetFormat(form)
	rebuild()
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel sets the minimum log level. Unknown levels are ignored.
func SetLevel(s string) {
	if l, ok := ParseLevel(s); ok {
		level.Set(l)
	}
}

// SetFormat sets the output format (text or json). Unknown formats are ignored.
func SetFormat(s string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != "text" && s != "json" {
		return
	}
	mu.Lock()
	changed := format != s
	format = s
	mu.Unlock()

	if changed {
		rebuild()
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level.
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// With returns a logger carrying args on every record, e.g. a request ID.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}
