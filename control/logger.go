// File: control/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin structured-logging facade over log/slog, used by engine, session and
// zctx for connection lifecycle events (plug, handshake, terminate,
// reconnect).

package control

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the fixed field set zlink's connection-
// lifecycle call sites attach (endpoint, component), so call sites pass
// only what varies.
type Logger struct {
	base *slog.Logger
}

// NewLogger builds a Logger writing JSON to os.Stderr at level.
func NewLogger(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(h)}
}

// With returns a Logger with additional fields bound for every subsequent
// call, mirroring slog.Logger.With without exposing slog to callers.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }

// nopLogger discards everything; used as the zero-value default so callers
// that never configure a Logger don't nil-check before every call.
var nopLogger = NewLogger(slog.LevelError + 1)

// NopLogger returns a Logger that discards all records.
func NopLogger() *Logger { return nopLogger }
