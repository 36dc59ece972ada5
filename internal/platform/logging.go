// Package platform holds the small pieces of ambient infrastructure every
// component in cmd/commandservice and cmd/queryservice shares: the
// structured logger and (in future) the telemetry spine wiring.
package platform

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the root logrus.Logger both services start from: JSON
// output, level from LOG_LEVEL (defaulting to info), full timestamps so log
// lines are useful piped straight to a file during local development.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// ComponentLogger returns the *logrus.Entry a component should carry for
// the rest of its lifetime, pre-populated with a stable `component`
// field.
func ComponentLogger(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
