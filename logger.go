package netcore

import "github.com/sirupsen/logrus"

// Log is the package-wide logger used by all three subsystems. Callers
// that embed this core in an environment with no console can leave it at
// its default, which produces no output.
var Log Logger = NewLogrusLogger(silentLogrus())

// Logger is the minimal structured-logging surface the core calls into.
// LogrusLogger adapts a *logrus.Entry to it; NewLogrusLogger wraps a
// *logrus.Logger that way.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// LogrusLogger adapts *logrus.Entry to the Logger interface.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps an existing *logrus.Logger.
func NewLogrusLogger(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l LogrusLogger) WithField(key string, value interface{}) Logger {
	return LogrusLogger{entry: l.entry.WithField(key, value)}
}

func (l LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return LogrusLogger{entry: l.entry.WithFields(fields)}
}

func (l LogrusLogger) WithError(err error) Logger {
	return LogrusLogger{entry: l.entry.WithError(err)}
}

func (l LogrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l LogrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l LogrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l LogrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }

func silentLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
