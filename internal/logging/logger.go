// Package logging owns the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

// Init configures Log for JSON output on stdout at the named level.
// Unknown levels fall back to info.
func Init(level string) {
	Configure(os.Stdout, level)
}

// Configure points Log at out with the named level.
func Configure(out io.Writer, level string) {
	Log.Out = out
	Log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)
}

// WithField starts an entry on the shared logger.
func WithField(key string, value any) *logrus.Entry {
	return Log.WithField(key, value)
}

// WithFields starts an entry on the shared logger.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
