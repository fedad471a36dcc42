package align

import (
	"github.com/sirupsen/logrus"

	"github.com/zsiec/ltcsplit/internal/logger"
)

// testLogger returns a logger for tests that only surfaces errors.
func testLogger() logger.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return logger.NewLogrusAdapter(logrus.NewEntry(log))
}
