package logger

import (
	"os"

	"go.uber.org/zap"
)

var (
	// Logger is the global structured logger. Use it on hot paths where
	// typed fields matter.
	Logger *zap.Logger
	// DefaultLogger is the global sugared logger for printf-style logging.
	DefaultLogger *zap.SugaredLogger
)

func init() {
	// Safe defaults until Setup is called. A no-op logger keeps library
	// consumers (and tests) from dereferencing nil globals.
	Logger = zap.NewNop()
	DefaultLogger = Logger.Sugar()
}

func Info(args ...interface{}) {
	DefaultLogger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	DefaultLogger.Infof(template, args...)
}

func Debug(args ...interface{}) {
	DefaultLogger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	DefaultLogger.Debugf(template, args...)
}

func Warn(args ...interface{}) {
	DefaultLogger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	DefaultLogger.Warnf(template, args...)
}

func Error(args ...interface{}) {
	DefaultLogger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	DefaultLogger.Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	DefaultLogger.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	DefaultLogger.Fatalf(template, args...)
	os.Exit(1)
}
