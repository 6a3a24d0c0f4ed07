package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

var log = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the minimum log level to display
func SetLevel(level LogLevel) {
	switch level {
	case LogLevelDebug:
		log.SetLevel(logrus.DebugLevel)
	case LogLevelWarning:
		log.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput sets the output destination for the logger
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// DisableColors forces plain output, e.g. when stderr is not a terminal.
func DisableColors() {
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
		DisableColors:          true,
	})
}

// tagged formats the message before prefixing the tags, so a % in a tag is
// printed as is.
func tagged(tags []string, format string, v []interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if len(tags) == 0 {
		return msg
	}
	return "[" + strings.Join(tags, "][") + "] " + msg
}

// Debug logs a message only shown with --verbose
func Debug(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

// DebugTagged logs a debug message with tags
func DebugTagged(tags []string, format string, v ...interface{}) {
	log.Debug(tagged(tags, format, v))
}

// Info logs an informational message
func Info(format string, v ...interface{}) {
	log.Infof(format, v...)
}

// InfoTagged logs an informational message with tags
func InfoTagged(tags []string, format string, v ...interface{}) {
	log.Info(tagged(tags, format, v))
}

// Warning logs a warning message
func Warning(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

// WarningTagged logs a warning message with tags
func WarningTagged(tags []string, format string, v ...interface{}) {
	log.Warn(tagged(tags, format, v))
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	log.Errorf(format, v...)
}

// ErrorTagged logs an error message with tags
func ErrorTagged(tags []string, format string, v ...interface{}) {
	log.Error(tagged(tags, format, v))
}
