// Package logging provides the formatted stderr logger used across the server.
//
// All output goes to stderr: with the stdio MCP transport, stdout carries the
// JSON-RPC stream and must stay clean.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Logger is a formatted logger with optional color output and a debug mode
// that dumps remote request/response payloads.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	color   bool
	debug   bool
}

// NewLogger creates a logger writing to stderr.
func NewLogger(verbose, color, debug bool) *Logger {
	return NewLoggerWithWriter(verbose, color, debug, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to the given writer. Used by
// tests to capture output.
func NewLoggerWithWriter(verbose, color, debug bool, w io.Writer) *Logger {
	return &Logger{
		out:     w,
		verbose: verbose,
		color:   color,
		debug:   debug,
	}
}

// SetVerbose toggles verbose output at runtime.
func (l *Logger) SetVerbose(verbose bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

func (l *Logger) log(prefix, color, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.color {
		fmt.Fprintf(l.out, "%s[%s]%s %s\n", color, prefix, colorReset, msg)
	} else {
		fmt.Fprintf(l.out, "[%s] %s\n", prefix, msg)
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", colorCyan, format, args...)
}

// Success logs a success message.
func (l *Logger) Success(format string, args ...interface{}) {
	l.log("OK", colorGreen, format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log("WARN", colorYellow, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", colorRed, format, args...)
}

// InfoVerbose logs an informational message only when verbose mode is on.
func (l *Logger) InfoVerbose(format string, args ...interface{}) {
	if l == nil || !l.isVerbose() {
		return
	}
	l.Info(format, args...)
}

// WarningVerbose logs a warning only when verbose mode is on.
func (l *Logger) WarningVerbose(format string, args ...interface{}) {
	if l == nil || !l.isVerbose() {
		return
	}
	l.Warning(format, args...)
}

// Debug logs a debug message only when debug mode is on.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.log("DEBUG", colorGray, format, args...)
}

// Request logs an outgoing remote call with its payload when debug mode is on.
func (l *Logger) Request(method, path string, payload interface{}) {
	if l == nil || !l.debug {
		return
	}
	if payload == nil {
		l.log("DEBUG", colorGray, "→ %s %s", method, path)
		return
	}
	l.log("DEBUG", colorGray, "→ %s %s %s", method, path, compactJSON(payload))
}

// Response logs a remote call response when debug mode is on. Bodies are
// truncated to keep the log readable.
func (l *Logger) Response(path string, status int, body []byte) {
	if l == nil || !l.debug {
		return
	}
	const maxPreview = 200
	preview := string(body)
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "..."
	}
	l.log("DEBUG", colorGray, "← %s %d %s", path, status, preview)
}

func (l *Logger) isVerbose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
