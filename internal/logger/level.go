// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"strings"
)

// Level is an enumeration representing the supported log severity levels.
//
// The order of the levels is important: a message is printed when its level is less than or equal to the level
// configured for its component. LevelOff therefore suppresses everything.
type Level int

const (
	// LevelOff suppresses logging.
	LevelOff Level = iota

	// LevelError enables logging of failures that were absorbed by the pool, such as a connection that could not be
	// closed.
	LevelError

	// LevelWarn enables logging of conditions that may indicate misuse of the pool. Example: an owner holding more
	// connections than it asked for, or a release of a connection the owner does not hold.
	LevelWarn

	// LevelInfo enables logging of informational messages. Example: pool creation or close.
	LevelInfo

	// LevelDebug enables logging of debug messages. These logs can be voluminous. Example: a connection being checked
	// out.
	LevelDebug
)

// LevelLiteral are the logging levels that may be read from environment variables or configuration files, mapped to a
// Level supported by the pool. See the "LevelLiteral.Level" method for more information.
type LevelLiteral string

const (
	OffLevelLiteral       LevelLiteral = "off"
	EmergencyLevelLiteral LevelLiteral = "emergency"
	AlertLevelLiteral     LevelLiteral = "alert"
	CriticalLevelLiteral  LevelLiteral = "critical"
	ErrorLevelLiteral     LevelLiteral = "error"
	WarnLevelLiteral      LevelLiteral = "warn"
	NoticeLevelLiteral    LevelLiteral = "notice"
	InfoLevelLiteral      LevelLiteral = "info"
	DebugLevelLiteral     LevelLiteral = "debug"
	TraceLevelLiteral     LevelLiteral = "trace"
)

// Level will return the Level associated with the level literal. If the literal is not a valid level, then LevelOff is
// returned.
func (llevel LevelLiteral) Level() Level {
	switch llevel {
	case EmergencyLevelLiteral, AlertLevelLiteral, CriticalLevelLiteral, ErrorLevelLiteral:
		return LevelError
	case WarnLevelLiteral:
		return LevelWarn
	case NoticeLevelLiteral, InfoLevelLiteral:
		return LevelInfo
	case DebugLevelLiteral, TraceLevelLiteral:
		return LevelDebug
	default:
		return LevelOff
	}
}

// equalFold will check if the “str” value is case-insensitive equal to the literal value.
func (llevel LevelLiteral) equalFold(str string) bool {
	return strings.EqualFold(string(llevel), str)
}

// AllLevelLiterals returns every accepted level literal.
func AllLevelLiterals() []LevelLiteral {
	return []LevelLiteral{
		OffLevelLiteral,
		EmergencyLevelLiteral,
		AlertLevelLiteral,
		CriticalLevelLiteral,
		ErrorLevelLiteral,
		WarnLevelLiteral,
		NoticeLevelLiteral,
		InfoLevelLiteral,
		DebugLevelLiteral,
		TraceLevelLiteral,
	}
}

// ParseLevel will check if the given string is a valid literal for a logging severity level. If it is, then it will
// return the Level and true. Otherwise it returns LevelOff and false.
func ParseLevel(level string) (Level, bool) {
	for _, llevel := range AllLevelLiterals() {
		if llevel.equalFold(strings.TrimSpace(level)) {
			return llevel.Level(), true
		}
	}

	return LevelOff, false
}

// String returns the canonical literal for the level.
func (level Level) String() string {
	switch level {
	case LevelError:
		return string(ErrorLevelLiteral)
	case LevelWarn:
		return string(WarnLevelLiteral)
	case LevelInfo:
		return string(InfoLevelLiteral)
	case LevelDebug:
		return string(DebugLevelLiteral)
	default:
		return string(OffLevelLiteral)
	}
}
