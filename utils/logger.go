package utils

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	log *logrus.Logger
}

// NewLogger creates a Logger at info level writing text to stdout.
func NewLogger() *Logger {
	return NewLoggerWith(os.Stdout, "info", "text")
}

// NewLoggerWith creates a Logger with an explicit sink, level and format
// ("text" or "json"). Unknown levels fall back to info.
func NewLoggerWith(out io.Writer, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return &Logger{log: l}
}

// Discard returns a Logger that drops everything; handy in tests.
func Discard() *Logger {
	return NewLoggerWith(io.Discard, "panic", "text")
}

func (l *Logger) Info(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log.Errorf(format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.log.Debugf(format, args...) }

// Writer exposes the logger as an io.Writer at info level, for libraries that
// want one (gin's default writer).
func (l *Logger) Writer() io.Writer {
	return l.log.WriterLevel(logrus.InfoLevel)
}
