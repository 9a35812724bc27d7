// Package core holds ambient infrastructure shared by the content
// processing packages: logging and invariant assertions.
package core

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides leveled logging.
// Components accept a Logger so implementations can be swapped in
// tests; NewDefaultLogger is the production default.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

// defaultLogger implements Logger using Go's standard log package.
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
}

// NewDefaultLogger creates the default logger writing errors and
// warnings to stderr and the rest to stdout.
func NewDefaultLogger() Logger {
	return newLogger(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a logger writing all levels to w.
// Useful for capturing output in tests.
func NewLoggerTo(w io.Writer) Logger {
	return newLogger(w, w)
}

func newLogger(out, errOut io.Writer) Logger {
	flags := log.LstdFlags | log.Lshortfile
	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", flags),
		warnLogger:  log.New(errOut, "[WARN] ", flags),
		infoLogger:  log.New(out, "[INFO] ", flags),
		debugLogger: log.New(out, "[DEBUG] ", flags),
	}
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.errorLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.warnLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.infoLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	l.debugLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.debugLogger.Output(3, fmt.Sprintf(format, args...))
}
