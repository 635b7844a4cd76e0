package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a DefaultLogger
type Options struct {
	Level  Level
	Format string // "text" (default) or "json"
	Output io.Writer

	// FilePath enables a rotating log file in addition to Output.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	DisableColors bool
}

// DefaultLogger is the logrus-backed Logger implementation.
// Output defaults to stderr; an optional rotating file receives the same lines.
type DefaultLogger struct {
	base   *logrus.Logger
	entry  *logrus.Entry
	closer io.Closer
}

// NewDefaultLogger creates a text logger on stderr at info level
func NewDefaultLogger() *DefaultLogger {
	return NewLogger(Options{Level: InfoLevel})
}

// NewLogger creates a logger from options
func NewLogger(opts Options) *DefaultLogger {
	base := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if opts.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   filepath.ToSlash(opts.FilePath),
			MaxSize:    orDefault(opts.MaxSizeMB, 5), // in MB
			MaxBackups: orDefault(opts.MaxBackups, 10),
			MaxAge:     orDefault(opts.MaxAgeDays, 30), // in days
			Compress:   opts.Compress,
		}
		closer = rotating
		out = io.MultiWriter(out, rotating)
	}
	base.SetOutput(out)

	if opts.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: opts.DisableColors,
		})
	}
	base.SetLevel(toLogrus(opts.Level))

	return &DefaultLogger{
		base:   base,
		entry:  logrus.NewEntry(base),
		closer: closer,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func toLogrus(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func (d *DefaultLogger) with(fields []Fields) *logrus.Entry {
	if len(fields) == 0 {
		return d.entry
	}

	merged := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return d.entry.WithFields(merged)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.with(fields).Debug(msg)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.with(fields).Info(msg)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.with(fields).Warn(msg)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.with(fields).WithError(err).Error(msg)
}

// Fatal logs and exits the process with status 1
func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.with(fields).WithError(err).Fatal(msg)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		base:   d.base,
		entry:  d.entry.WithFields(logrus.Fields(fields)),
		closer: d.closer,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel changes the level of the underlying logrus logger, shared by all
// loggers derived through WithFields.
func (d *DefaultLogger) SetLevel(level Level) {
	d.base.SetLevel(toLogrus(level))
}

// Close flushes and closes the rotating log file, if any.
func (d *DefaultLogger) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// NoOpLogger discards everything; used when logging is disabled
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
