// Package logging builds the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout with the given level and format
// ("json" or "text").
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(level, format, os.Stdout)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)

	switch format {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return log, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
