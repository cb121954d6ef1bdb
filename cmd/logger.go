package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger creates a per-command logger. Verbose forces DebugLevel;
// otherwise LOG_LEVEL applies, defaulting to info.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()

	if verbose {
		log.SetLevel(logrus.DebugLevel)
		return log
	}

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
