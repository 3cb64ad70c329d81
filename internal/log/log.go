// Package log provides the audit-style logger used throughout the
// pipeline, grounded on the call sites the teacher repo leaves behind
// in cmd/shell.go and ca/certificate-authority.go (blog.GetAuditLogger,
// logger.AuditErr, logger.Warning, logger.Notice) even though the
// teacher's own log package implementation was not present in the
// reference pack. The wrapper is built over logrus, the logging
// library the wider example pack reaches for.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface consumed by every component in this module.
// Method names mirror the teacher's blog.Logger so call sites read the
// same way ("logger.AuditErr(err)", "logger.Warning(msg)").
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Notice(msg string)
	Warning(msg string)
	Err(msg string)
	AuditErr(err error)
	WithField(key string, value interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

var (
	defaultMu     sync.Mutex
	defaultLogger Logger
)

// New builds a Logger tagged with the given component name.
func New(component string) Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.JSONFormatter{})
	return &logrusLogger{entry: base.WithField("component", component)}
}

// Set installs l as the process-wide default logger.
func Set(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Get returns the process-wide default logger, constructing a bare one
// tagged "pkd" if none has been installed yet.
func Get() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New("pkd")
	}
	return defaultLogger
}

func (l *logrusLogger) Debug(msg string)   { l.entry.Debug(msg) }
func (l *logrusLogger) Info(msg string)    { l.entry.Info(msg) }
func (l *logrusLogger) Notice(msg string)  { l.entry.Info(msg) }
func (l *logrusLogger) Warning(msg string) { l.entry.Warn(msg) }
func (l *logrusLogger) Err(msg string)     { l.entry.Error(msg) }
func (l *logrusLogger) AuditErr(err error) {
	if err == nil {
		return
	}
	l.entry.WithField("audit", true).Error(err.Error())
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}
