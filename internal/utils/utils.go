package utils

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// RetryLogger adapts a logrus logger to retryablehttp's LeveledLogger.
// Retry chatter is only interesting when debugging, so Info is demoted.
type RetryLogger struct {
	L *logrus.Logger
}

func (r RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.L.WithFields(fields(keysAndValues)).Error(msg)
}

func (r RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.L.WithFields(fields(keysAndValues)).Warn(msg)
}

func (r RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.L.WithFields(fields(keysAndValues)).Debug(msg)
}

func (r RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.L.WithFields(fields(keysAndValues)).Debug(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
