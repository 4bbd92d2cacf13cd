// Package logging builds the logrus logger used across born-convert.
package logging

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to out. Unknown levels fall back to info;
// any format other than "json" uses the text formatter.
func New(level, format string, out io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Discard returns a logger that drops everything, for tests and quiet runs.
func Discard() *log.Logger {
	return New("panic", "text", io.Discard)
}
