package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the process logger: text output to stdout, full timestamps,
// level from config (defaults to info on an unknown value).
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
