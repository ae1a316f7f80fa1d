// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"io"

	"github.com/ikmak/agingpool/internal/logger"
)

// LogLevel is an enumeration representing the supported log severity levels.
type LogLevel int

const (
	// OffLogLevel suppresses logging.
	OffLogLevel LogLevel = LogLevel(logger.LevelOff)

	// ErrorLogLevel enables logging of failures absorbed by the pool.
	ErrorLogLevel LogLevel = LogLevel(logger.LevelError)

	// WarnLogLevel enables logging of pool misuse diagnostics. This is the default.
	WarnLogLevel LogLevel = LogLevel(logger.LevelWarn)

	// InfoLogLevel enables logging of informational messages such as pool creation or close.
	InfoLogLevel LogLevel = LogLevel(logger.LevelInfo)

	// DebugLogLevel enables logging of debug messages. These logs can be voluminous.
	DebugLogLevel LogLevel = LogLevel(logger.LevelDebug)
)

// LogComponent is an enumeration representing the "components" which can be logged against. A LogLevel can be
// configured on a per-component basis.
type LogComponent int

const (
	// AllLogComponent enables logging for all components.
	AllLogComponent LogComponent = LogComponent(logger.ComponentAll)

	// PoolLogComponent enables pool lifecycle logging.
	PoolLogComponent LogComponent = LogComponent(logger.ComponentPool)

	// CheckoutLogComponent enables checkout diagnostics logging.
	CheckoutLogComponent LogComponent = LogComponent(logger.ComponentCheckout)

	// ReaperLogComponent enables idle connection reaper logging.
	ReaperLogComponent LogComponent = LogComponent(logger.ComponentReaper)
)

// LogSink is an interface that can be implemented to provide a custom sink for the pool's logs.
type LogSink interface {
	// Info logs a non-error message. level is the int value of a LogLevel.
	Info(level int, message string, keysAndValues ...interface{})

	// Error logs an error message with the given key/value pairs.
	Error(err error, message string, keysAndValues ...interface{})
}

// ComponentLevels maps components to the level enabled for them.
type ComponentLevels map[LogComponent]LogLevel

// LoggerOptions represent options used to configure logging in the pool.
type LoggerOptions struct {
	ComponentLevels ComponentLevels

	// Sink is the LogSink that will be used to log messages. If this is nil, the pool logs through logrus.
	Sink LogSink

	// Output is the writer to write logs to. If nil, the default is os.Stderr. Output is ignored if Sink is set.
	Output io.Writer
}

// Logger creates a new LoggerOptions instance.
func Logger() *LoggerOptions {
	return &LoggerOptions{
		ComponentLevels: ComponentLevels{},
	}
}

// SetComponentLevel sets the LogLevel value for a LogComponent.
func (opts *LoggerOptions) SetComponentLevel(component LogComponent, level LogLevel) *LoggerOptions {
	if opts.ComponentLevels == nil {
		opts.ComponentLevels = ComponentLevels{}
	}
	opts.ComponentLevels[component] = level

	return opts
}

// SetSink sets the LogSink to use for logging.
func (opts *LoggerOptions) SetSink(sink LogSink) *LoggerOptions {
	opts.Sink = sink

	return opts
}

// SetOutput sets the writer used when no sink is set.
func (opts *LoggerOptions) SetOutput(w io.Writer) *LoggerOptions {
	opts.Output = w

	return opts
}

// MergeLoggerOptions combines the given *LoggerOptions into a single *LoggerOptions in a last one wins fashion.
// Component levels are merged key by key.
func MergeLoggerOptions(opts ...*LoggerOptions) *LoggerOptions {
	lo := Logger()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		for component, level := range opt.ComponentLevels {
			lo.ComponentLevels[component] = level
		}
		if opt.Sink != nil {
			lo.Sink = opt.Sink
		}
		if opt.Output != nil {
			lo.Output = opt.Output
		}
	}

	return lo
}

// NewLogger builds the pool's internal logger from the options. A nil receiver yields a logger with default levels
// writing to os.Stderr.
func (opts *LoggerOptions) NewLogger() *logger.Logger {
	if opts == nil {
		return logger.New(nil)
	}

	levels := make(map[logger.Component]logger.Level, len(opts.ComponentLevels))
	for component, level := range opts.ComponentLevels {
		levels[logger.Component(component)] = logger.Level(level)
	}

	if opts.Sink != nil {
		return logger.New(opts.Sink, levels)
	}
	return logger.NewWithWriter(opts.Output, levels)
}
