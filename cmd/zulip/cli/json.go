// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
)

// Stdout receives command results. Tests replace it to capture output.
var Stdout io.Writer = os.Stdout

// JSONOutput is embedded in a params struct to add the --json flag and
// [JSONOutput.EmitJSON].
//
//	type messagesParams struct {
//	    cli.JSONOutput
//	    Stream string `flag:"stream" desc:"only this stream"`
//	}
//
//	// In Run:
//	if done, err := params.EmitJSON(response.Messages); done {
//	    return err
//	}
//	// ... text formatting ...
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result as indented JSON to Stdout if --json is set.
// It returns false when --json is not set and the caller should format
// text instead. A nil slice is written as [].
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(normalizeNilSlice(result))
}

// WriteJSON writes value as indented JSON to Stdout.
func WriteJSON(value any) error {
	encoder := json.NewEncoder(Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// NewJSONLines returns an encoder writing one compact JSON value per
// line to Stdout, for streaming commands like watch.
func NewJSONLines() *json.Encoder {
	encoder := json.NewEncoder(Stdout)
	encoder.SetEscapeHTML(false)
	return encoder
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
