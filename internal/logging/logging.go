// Package logging builds the process-wide structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger returns a logrus.Logger writing JSON-structured entries to
// stdout at the given level.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}

// New builds the application logger for the given environment: JSON in
// production, a human-readable text formatter with caller info otherwise.
func New(production bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if production {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.JSONFormatter{})
		return log
	}
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetReportCaller(true)
	return log
}
