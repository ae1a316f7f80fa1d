// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger is the structured logger used by the pool. Messages are routed through a LogSink, filtered by a
// severity Level configured per Component.
package logger

import (
	"io"
	"os"
)

// DefaultLevel is the level used for a component that has no level configured through options or the environment.
const DefaultLevel = LevelWarn

// Keys shared by the pool's log messages.
const (
	KeyPoolName     = "poolName"
	KeyConnectionID = "connectionId"
	KeyOwnerID      = "ownerId"
	KeyOwnerName    = "ownerName"
	KeyError        = "error"
	KeyReason       = "reason"
	KeyTraces       = "traces"
	KeyHeld         = "held"
	KeyLimit        = "limit"
	KeyCount        = "count"
)

// LogSink is an interface that can be implemented to provide a custom sink for the pool's logs. The level passed to
// Info is the int value of the message's Level.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// KeyValues is a list of key-value pairs.
type KeyValues []interface{}

// Add adds a key-value pair to an instance of a KeyValues list.
func (kvs *KeyValues) Add(key string, value interface{}) {
	*kvs = append(*kvs, key, value)
}

// Logger is the pool's logger. It is used to log messages either to stderr (through logrus) or to a custom LogSink.
type Logger struct {
	ComponentLevels map[Component]Level
	Sink            LogSink
}

// New will construct a new logger with the given LogSink. If the given LogSink is nil, then the logger will log to
// os.Stderr through a logrus logger.
//
// The "componentLevels" parameter is variadic with the latest value taking precedence. Levels read from the
// environment are applied first, so explicitly configured levels win over them. An explicit ComponentAll level
// replaces every level read from the environment. Components left without a level use DefaultLevel.
func New(sink LogSink, componentLevels ...map[Component]Level) *Logger {
	explicit := mergeComponentLevels(componentLevels...)
	levels := getEnvComponentLevels()
	if _, ok := explicit[ComponentAll]; ok {
		levels = make(map[Component]Level)
	}
	for component, level := range explicit {
		levels[component] = level
	}

	if sink == nil {
		sink = NewLogrusSink(nil)
	}

	return &Logger{
		ComponentLevels: levels,
		Sink:            sink,
	}
}

// NewWithWriter will construct a new logger that writes to w. If w is nil, os.Stderr is used.
func NewWithWriter(w io.Writer, componentLevels ...map[Component]Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(NewLogrusSink(newLogrus(w)), componentLevels...)
}

// LevelComponentEnabled will return true if the given Level is enabled for the given Component.
func (logger *Logger) LevelComponentEnabled(level Level, component Component) bool {
	if logger == nil || level == LevelOff {
		return false
	}
	configured, ok := logger.ComponentLevels[component]
	if !ok {
		configured, ok = logger.ComponentLevels[ComponentAll]
	}
	if !ok {
		configured = DefaultLevel
	}
	return level <= configured
}

// Print will print the given message with the given key-value pairs if the level is enabled for the component.
func (logger *Logger) Print(level Level, component Component, msg string, keysAndValues ...interface{}) {
	if !logger.LevelComponentEnabled(level, component) {
		return
	}
	logger.Sink.Info(int(level), msg, keysAndValues...)
}

// Error will print the given error and message at LevelError if that level is enabled for the component.
func (logger *Logger) Error(component Component, err error, msg string, keysAndValues ...interface{}) {
	if !logger.LevelComponentEnabled(LevelError, component) {
		return
	}
	logger.Sink.Error(err, msg, keysAndValues...)
}

// mergeComponentLevels will merge the given maps of component levels with the latest value taking precedence.
func mergeComponentLevels(componentLevels ...map[Component]Level) map[Component]Level {
	merged := make(map[Component]Level)
	for _, levels := range componentLevels {
		for component, level := range levels {
			merged[component] = level
		}
	}

	return merged
}
