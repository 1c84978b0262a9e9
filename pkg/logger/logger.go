// Package logger wraps logrus with the configuration shape the rest of the
// orchestrator expects: a level, a format, and an output sink, all driven
// from the YAML config file rather than environment variables.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Logger so call sites depend on this package, not
// logrus directly. component, when set, is attached to every entry
// emitted through Info, Infof, WithField, WithFields and WithError, so
// log lines from different subsystems sharing one sink can be told
// apart. The other logrus methods promoted from the embedded Logger
// (Warn, Error, Debug, Errorf, ...) do not add the component field.
type Logger struct {
	*logrus.Logger
	component string
}

// base returns the entry every emitting method chains from, carrying the
// component field when one was set.
func (l *Logger) base() *logrus.Entry {
	if l.component == "" {
		return logrus.NewEntry(l.Logger)
	}
	return l.Logger.WithField("component", l.component)
}

// Info logs at info level, tagged with this Logger's component if any.
func (l *Logger) Info(args ...interface{}) { l.base().Info(args...) }

// Infof logs a formatted message at info level, tagged with this
// Logger's component if any.
func (l *Logger) Infof(format string, args ...interface{}) { l.base().Infof(format, args...) }

// Config describes how a Logger should be constructed.
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// New builds a Logger from Config. Unrecognised levels fall back to Info;
// unrecognised formats fall back to text; unrecognised outputs fall back
// to stdout.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "orchestrator"
		}
		dir := "logs"
		if err := os.MkdirAll(dir, 0o755); err != nil {
			l.Errorf("create log directory: %v", err)
			break
		}
		path := filepath.Join(dir, prefix+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Errorf("open log file %s: %v", path, err)
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, f))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns an Info-level, text-formatted, stdout logger whose
// every entry carries a "component" field set to name. Components use
// this when no explicit Logger is supplied.
func NewDefault(name string) *Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l, component: name}
}

// WithField returns a log entry with a single field set, in addition to
// this Logger's component field if any.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.base().WithField(key, value)
}

// WithFields returns a log entry with multiple fields set, in addition
// to this Logger's component field if any.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.base().WithFields(fields)
}

// WithError returns a log entry with the "error" field set, in addition
// to this Logger's component field if any.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.base().WithError(err)
}

// WithComponent returns a Logger sharing this Logger's underlying
// *logrus.Logger (same level, format, and output) but tagging every
// entry it emits with component. Used to derive one distinguishable
// logger per subsystem from a single process-wide Config-built root.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger, component: component}
}
