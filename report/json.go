// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package report

import (
	"encoding/json"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/tidwall/pretty"
)

// MarshalJSON returns v as indented JSON, or as a single line when compact is true.
func MarshalJSON(v interface{}, compact bool) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if compact {
		return pretty.Ugly(b), nil
	}
	return pretty.Pretty(b), nil
}

// WriteJSON writes v as JSON, see MarshalJSON.
func WriteJSON(w io.Writer, v interface{}, compact bool) error {
	b, err := MarshalJSON(v, compact)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

var debugConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// WriteDebug writes a Go syntax dump of v, including unexported fields.
func WriteDebug(w io.Writer, v interface{}) {
	debugConfig.Fdump(w, v)
}
