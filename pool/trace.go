// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"fmt"

	"github.com/go-stack/stack"
)

// captureTrace returns the call stack starting skip frames above the caller of captureTrace, with runtime frames
// removed.
func captureTrace(skip int) stack.CallStack {
	cs := stack.Trace()
	if skip+1 >= len(cs) {
		return cs.TrimRuntime()
	}
	return cs[skip+1:].TrimRuntime()
}

// traceLines renders a call stack as "package.function file:line" lines.
func traceLines(cs stack.CallStack) []string {
	if len(cs) == 0 {
		return nil
	}
	// go vet doesn't like %n even though it's part of stack's API, so the format
	// lives in a variable.
	callFormat := "%+n %+v"

	lines := make([]string, 0, len(cs))
	for _, call := range cs {
		lines = append(lines, fmt.Sprintf(callFormat, call, call))
	}
	return lines
}
