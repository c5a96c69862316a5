// Package log wraps zap with a process-wide logger shared by the
// fluxlag command-line tools. Library packages receive an injected
// *zap.SugaredLogger instead of importing this package.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var base *zap.Logger
var sugar *zap.SugaredLogger

// Init configures the package-level logger. Debug selects the
// human-readable development encoder at debug level.
func Init(debug bool) error {
	var zl *zap.Logger
	var err error

	if debug {
		zl, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zl, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	base = zl
	sugar = zl.Sugar()
	return nil
}

// logger returns the sugared logger, creating a production fallback
// when Init was never called.
func logger() *zap.SugaredLogger {
	if sugar == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
		sugar = base.Sugar()
	}
	return sugar
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	logger()
	return base
}

// GetSugaredLogger returns the sugared logger instance
func GetSugaredLogger() *zap.SugaredLogger {
	return logger()
}

// Sync flushes any buffered log entries
func Sync() {
	if sugar != nil {
		sugar.Sync()
	}
}

// Package-level convenience functions
func Debug(args ...interface{}) {
	logger().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	logger().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	logger().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	logger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	logger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	logger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	logger().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	logger().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	logger().Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	logger().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	logger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	logger().Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	logger().Fatal(args...)
}

func Fatalf(template string, args ...interface{}) {
	logger().Fatalf(template, args...)
}
