// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger shared by every
// subsystem in the control plane core.
package logging

import (
	"io"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the rendered log line format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config configures a Logger.
type Config struct {
	Level      string // debug|info|warn|error
	Format     Format
	TimeFormat string
	Output     io.Writer
	Prefix     string
}

// DefaultConfig returns the default logging configuration: info level,
// text format, RFC3339 timestamps, stderr output.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatText,
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
		Prefix:     "patronus",
	}
}

// Logger wraps charmbracelet/log with the small surface the rest of the
// core depends on: leveled calls taking alternating key/value pairs.
type Logger struct {
	l        *charmlog.Logger
	syslog   io.WriteCloser
	cfg      Config
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Prefix:          cfg.Prefix,
	}
	if cfg.Format == FormatJSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	l := charmlog.NewWithOptions(out, opts)
	l.SetLevel(parseLevel(cfg.Level))
	return &Logger{l: l, cfg: cfg}
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// WithSyslog attaches a writer (typically built with NewSyslogWriter) that
// every subsequent log line is additionally forwarded to. Pass nil to
// disable. The Logger closes the previous writer, if any.
func (lg *Logger) WithSyslog(w io.WriteCloser) {
	if lg.syslog != nil {
		lg.syslog.Close()
	}
	lg.syslog = w
	if w == nil {
		lg.l.SetOutput(lg.cfg.Output)
		return
	}
	lg.l.SetOutput(io.MultiWriter(lg.cfg.Output, w))
}

// With returns a child logger carrying the given key/value pairs on
// every subsequent call.
func (lg *Logger) With(kv ...any) *Logger {
	return &Logger{l: lg.l.With(kv...), syslog: lg.syslog, cfg: lg.cfg}
}

func (lg *Logger) Debug(msg string, kv ...any) { lg.l.Debug(msg, kv...) }
func (lg *Logger) Info(msg string, kv ...any)  { lg.l.Info(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.l.Warn(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.l.Error(msg, kv...) }

// Close releases any attached syslog writer.
func (lg *Logger) Close() error {
	if lg.syslog != nil {
		return lg.syslog.Close()
	}
	return nil
}
