// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"encoding/json"
	"fmt"
)

// resultSuccess is the only result token that marks a successful
// response. Every other value is a server rejection.
const resultSuccess = "success"

// rawResponse is an HTTP response as returned by the transport: the
// status code and the bounded body bytes, tagged with the request it
// answers for error messages.
type rawResponse struct {
	method     string
	path       string
	statusCode int
	body       []byte
}

// envelope is the first decoding phase: the response parsed into an
// untyped map so the result discriminator can be inspected before the
// payload shape is known. Failure responses routinely omit fields that
// the success payload requires, so the typed decode only happens after
// the discriminator says "success".
type envelope struct {
	response rawResponse
	fields   map[string]json.RawMessage
	result   string
	message  string
	code     string
}

// decodeEnvelope performs phase one. It fails with a *ProtocolError if
// the body is not a JSON object or has no string result field. It never
// looks at fields other than result, msg, and code.
func decodeEnvelope(response rawResponse) (*envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(response.body, &fields); err != nil || fields == nil {
		reason := "body is not a JSON object"
		if response.statusCode < 200 || response.statusCode >= 300 {
			reason = fmt.Sprintf("unexpected %d response: %s", response.statusCode, snippet(response.body))
		}
		return nil, response.protocolError(reason, err)
	}

	rawResult, ok := fields["result"]
	if !ok {
		return nil, response.protocolError("missing result field", nil)
	}

	decoded := &envelope{response: response, fields: fields}
	if err := json.Unmarshal(rawResult, &decoded.result); err != nil {
		return nil, response.protocolError("result field is not a string", err)
	}
	if rawMessage, ok := fields["msg"]; ok {
		if err := json.Unmarshal(rawMessage, &decoded.message); err != nil {
			return nil, response.protocolError("msg field is not a string", err)
		}
	}
	if rawCode, ok := fields["code"]; ok {
		// code is advisory; a non-string value is ignored rather than
		// turning a server rejection into a protocol error.
		_ = json.Unmarshal(rawCode, &decoded.code)
	}
	return decoded, nil
}

// succeeded reports whether the discriminator is "success".
func (e *envelope) succeeded() bool {
	return e.result == resultSuccess
}

// serverError builds the ServerRejected error for a failure envelope.
func (e *envelope) serverError() *ServerError {
	return &ServerError{
		Method:     e.response.method,
		Path:       e.response.path,
		StatusCode: e.response.statusCode,
		Result:     e.result,
		Code:       e.code,
		Message:    e.message,
	}
}

// decodePayload performs phase two: a strict typed decode of the same
// response into T. Each name in required must be present and non-null
// in the envelope; a missing required field or a type mismatch is a
// *ProtocolError. Callers must only invoke this on a success envelope.
func decodePayload[T any](e *envelope, required ...string) (T, error) {
	var payload T
	for _, name := range required {
		value, ok := e.fields[name]
		if !ok || string(value) == "null" {
			return payload, e.response.protocolError(fmt.Sprintf("success response missing required field %q", name), nil)
		}
	}
	if err := json.Unmarshal(e.response.body, &payload); err != nil {
		return payload, e.response.protocolError("success payload does not match the expected shape", err)
	}
	return payload, nil
}

// decodeResponse runs both phases: it returns the typed payload on
// success, a *ServerError on a failure envelope (without attempting the
// payload decode), or a *ProtocolError.
func decodeResponse[T any](response rawResponse, required ...string) (T, error) {
	var zero T
	decoded, err := decodeEnvelope(response)
	if err != nil {
		return zero, err
	}
	if !decoded.succeeded() {
		return zero, decoded.serverError()
	}
	return decodePayload[T](decoded, required...)
}

// expectSuccess is decodeResponse for operations whose success payload
// carries nothing beyond the envelope.
func expectSuccess(response rawResponse) error {
	decoded, err := decodeEnvelope(response)
	if err != nil {
		return err
	}
	if !decoded.succeeded() {
		return decoded.serverError()
	}
	return nil
}

func (r rawResponse) protocolError(reason string, err error) *ProtocolError {
	return &ProtocolError{
		Method:     r.method,
		Path:       r.path,
		StatusCode: r.statusCode,
		Reason:     reason,
		Err:        err,
	}
}

// snippet truncates a response body for inclusion in an error message.
func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
