/*
Copyright The Postgres User Controller Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log contains the logging subsystem of the controller
package log

import (
	"context"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
)

// Log level priorities, mapped on the zap levels
const (
	// ErrorLevel is the error level priority
	ErrorLevel = zapcore.ErrorLevel
	// WarningLevel is the warning level priority
	WarningLevel = zapcore.WarnLevel
	// InfoLevel is the info level priority
	InfoLevel = zapcore.InfoLevel
	// DebugLevel is the debug level priority
	DebugLevel = zapcore.DebugLevel
	// TraceLevel is the trace level priority
	TraceLevel = zapcore.Level(-2)
	// DefaultLevel is the level used when no other indication is given
	DefaultLevel = InfoLevel
)

// String representations of the log levels, used by the --log-level
// flag and by the level encoder
const (
	// ErrorLevelString is the string representation of the error level
	ErrorLevelString = "error"
	// WarningLevelString is the string representation of the warning level
	WarningLevelString = "warning"
	// InfoLevelString is the string representation of the info level
	InfoLevelString = "info"
	// DebugLevelString is the string representation of the debug level
	DebugLevelString = "debug"
	// TraceLevelString is the string representation of the trace level
	TraceLevelString = "trace"
	// DefaultLevelString is the string representation of the default level
	DefaultLevelString = InfoLevelString
)

// Logger is the interface used by every component to log events.
// It mirrors logr.Logger adding the warning, debug and trace
// severities used across the codebase
type Logger interface {
	Enabled() bool
	Error(err error, msg string, keysAndValues ...interface{})
	Warning(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Trace(msg string, keysAndValues ...interface{})

	WithValues(keysAndValues ...interface{}) Logger
	WithName(name string) Logger

	// GetLogger returns the underlying logr implementation
	GetLogger() logr.Logger
}

type logger struct {
	logr.Logger
}

var defaultLog = &logger{Logger: logr.Discard()}

// SetLogger replaces the backing logr implementation of the
// default logger
func SetLogger(logrLogger logr.Logger) {
	defaultLog.Logger = logrLogger
}

// GetLogger returns the default Logger
func GetLogger() Logger {
	return defaultLog
}

// FromContext builds a Logger from the logr instance carried by the
// context, falling back to the default logger when none is attached
func FromContext(ctx context.Context) Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return &logger{Logger: l}
	}
	return defaultLog
}

// IntoContext injects a Logger into a new context derived from ctx
func IntoContext(ctx context.Context, log Logger) context.Context {
	return logr.NewContext(ctx, log.GetLogger())
}

func (l *logger) Enabled() bool {
	return l.Logger.Enabled()
}

func (l *logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(err, msg, keysAndValues...)
}

// Warning logs a warning entry. logr has no warning severity, so the
// record travels as an info entry tagged with the warning level string
func (l *logger) Warning(msg string, keysAndValues ...interface{}) {
	kv := make([]interface{}, 0, len(keysAndValues)+2)
	kv = append(kv, "level", WarningLevelString)
	kv = append(kv, keysAndValues...)
	l.Logger.Info(msg, kv...)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, keysAndValues...)
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.V(1).Info(msg, keysAndValues...)
}

func (l *logger) Trace(msg string, keysAndValues ...interface{}) {
	l.Logger.V(2).Info(msg, keysAndValues...)
}

func (l *logger) WithValues(keysAndValues ...interface{}) Logger {
	return &logger{Logger: l.Logger.WithValues(keysAndValues...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{Logger: l.Logger.WithName(name)}
}

func (l *logger) GetLogger() logr.Logger {
	return l.Logger
}

// Error logs an error entry using the default logger
func Error(err error, msg string, keysAndValues ...interface{}) {
	defaultLog.Error(err, msg, keysAndValues...)
}

// Warning logs a warning entry using the default logger
func Warning(msg string, keysAndValues ...interface{}) {
	defaultLog.Warning(msg, keysAndValues...)
}

// Info logs an info entry using the default logger
func Info(msg string, keysAndValues ...interface{}) {
	defaultLog.Info(msg, keysAndValues...)
}

// Debug logs a debug entry using the default logger
func Debug(msg string, keysAndValues ...interface{}) {
	defaultLog.Debug(msg, keysAndValues...)
}

// Trace logs a trace entry using the default logger
func Trace(msg string, keysAndValues ...interface{}) {
	defaultLog.Trace(msg, keysAndValues...)
}

// WithName returns a copy of the default logger with the given name
func WithName(name string) Logger {
	return defaultLog.WithName(name)
}

// WithValues returns a copy of the default logger enriched with the
// given key/value pairs
func WithValues(keysAndValues ...interface{}) Logger {
	return defaultLog.WithValues(keysAndValues...)
}
