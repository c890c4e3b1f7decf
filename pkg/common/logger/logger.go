package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so library packages and tests never see a nil logger.
var Log = logrus.New()

func Init() {
	Configure(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// Configure points the shared logger at out with the given level name.
func Configure(out io.Writer, level string) {
	Log.SetOutput(out)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// WithFeeder tags an entry with the feeder a sentence arrived from.
func WithFeeder(feeder string) *logrus.Entry {
	return Log.WithField("feeder", feeder)
}
