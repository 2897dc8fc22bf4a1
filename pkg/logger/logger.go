package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured fields attached to a log entry.
type Fields = logrus.Fields

var (
	mu      sync.Mutex
	base    *logrus.Logger
	logFile *os.File
)

// InitLogger writes to stdout and appends to filename when it is not empty.
// level is one of debug, info, warn, error.
func InitLogger(filename string, level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stdout
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", filename, err)
		}
		if logFile != nil {
			logFile.Close()
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, logFile)
	}

	base = newLogger(out, lvl)
	return nil
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

// Close closes the log file, if any, and sends further output to stdout only.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		if base != nil {
			base.SetOutput(os.Stdout)
		}
		logFile.Close()
		logFile = nil
	}
}

func newLogger(out io.Writer, lvl logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func parseLevel(level string) (logrus.Level, error) {
	if strings.TrimSpace(level) == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

func get() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = newLogger(os.Stdout, logrus.InfoLevel)
	}
	return base
}

// WithFields returns an entry that carries fields on every line it logs.
func WithFields(f Fields) *logrus.Entry {
	return get().WithFields(f)
}

func Info(format string, v ...interface{}) {
	get().Infof(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Debugf(format string, v ...interface{}) {
	get().Debugf(format, v...)
}

func Error(format string, v ...interface{}) {
	get().Errorf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	get().Warnf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}
