// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusSink writes to a logrus logger and is the default sink for the logger.
type LogrusSink struct {
	log *logrus.Logger
}

// Compile-time check to ensure LogrusSink implements the LogSink interface.
var _ LogSink = &LogrusSink{}

// NewLogrusSink will create a new LogrusSink that writes to the provided logrus logger. If log is nil, a logger
// writing text to os.Stderr is created.
func NewLogrusSink(log *logrus.Logger) *LogrusSink {
	if log == nil {
		log = newLogrus(os.Stderr)
	}
	return &LogrusSink{log: log}
}

func newLogrus(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	// Filtering happens in Logger, so let everything through here.
	log.SetLevel(logrus.DebugLevel)
	return log
}

// Info will write the provided message and key-value pairs at the logrus level matching the given Level.
func (s *LogrusSink) Info(level int, msg string, keysAndValues ...interface{}) {
	entry := s.log.WithFields(fields(keysAndValues))

	switch Level(level) {
	case LevelError:
		entry.Error(msg)
	case LevelWarn:
		entry.Warn(msg)
	case LevelInfo:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

// Error will write the provided error and key-value pairs at logrus' error level.
func (s *LogrusSink) Error(err error, msg string, keysAndValues ...interface{}) {
	s.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		f[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["!BADKEY"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}
