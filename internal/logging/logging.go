// Package logging builds the structured loggers handed to every updraft component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Format selects the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures a logger built by New.
type Options struct {
	Level  string    // debug, info, warn, error
	Format Format    // text or json
	Output io.Writer // defaults to os.Stderr
}

// UTCFormatter is a log formatter that prints with UTC timestamps.
type UTCFormatter struct {
	logrus.Formatter
}

// Format normalizes the entry time to UTC before delegating.
func (u *UTCFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}

// New creates a logger from opts. It never touches the logrus standard logger.
func New(opts Options) (*logrus.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	formatter, err := newFormatter(opts.Format)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(formatter)
	return logger, nil
}

// Discard returns a logger that drops everything. Components fall back to it when
// constructed with a nil logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps a case-insensitive level name to a logrus level.
// An empty name means info.
func ParseLevel(name string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "INFO":
		return logrus.InfoLevel, nil
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "WARN", "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level: %s", name)
	}
}

func newFormatter(format Format) (logrus.Formatter, error) {
	switch Format(strings.ToLower(string(format))) {
	case "", FormatText:
		return &UTCFormatter{Formatter: &logrus.TextFormatter{FullTimestamp: true}}, nil
	case FormatJSON:
		return &UTCFormatter{Formatter: &logrus.JSONFormatter{}}, nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}
