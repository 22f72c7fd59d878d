// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"errors"
	"fmt"
)

// ServerError is returned when the server answered with a well-formed
// envelope whose result is not "success". Message is the server's msg
// field, unmodified. Callers can use errors.As to extract it:
//
//	var serverErr *ServerError
//	if errors.As(err, &serverErr) {
//	    if serverErr.Code == CodeBadEventQueueID { ... }
//	}
type ServerError struct {
	// Method and Path identify the request that was rejected.
	Method string
	Path   string
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Result is the envelope's result token (normally "error").
	Result string
	// Code is the platform's machine-readable error code, when present
	// (e.g., "BAD_EVENT_QUEUE_ID"). Older servers omit it.
	Code string
	// Message is the human-readable msg field from the server.
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("zulip: server rejected %s %s (%s): %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("zulip: server rejected %s %s: %s", e.Method, e.Path, e.Message)
}

// ProtocolError is returned when a response could not be interpreted:
// the body is not JSON, lacks the result discriminator, or a success
// envelope does not match the payload shape of the operation. This
// indicates a client/server incompatibility, not a domain failure.
type ProtocolError struct {
	Method     string
	Path       string
	StatusCode int
	// Reason describes what was wrong with the response.
	Reason string
	// Err is the underlying decode error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	message := fmt.Sprintf("zulip: malformed response from %s %s (%d): %s", e.Method, e.Path, e.StatusCode, e.Reason)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError is returned when the HTTP round trip itself failed:
// DNS, connection refused, TLS, timeout, or context cancellation.
// The core never retries these.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zulip: request to %s %s failed: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Error codes reported by the server in the "code" field of failure
// envelopes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeBadEventQueueID    = "BAD_EVENT_QUEUE_ID"
	CodeRateLimitHit       = "RATE_LIMIT_HIT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeStreamDoesNotExist = "STREAM_DOES_NOT_EXIST"
)

// ErrStreamCreatedUnresolved wraps the error from CreateStream when the
// subscription call succeeded but resolving the new stream's id failed.
// The stream exists on the server; retry GetStreamID rather than the
// whole creation.
var ErrStreamCreatedUnresolved = errors.New("zulip: stream created but id not resolved")

// IsServerError reports whether err is a *ServerError with the given
// code. An empty code matches any server rejection.
func IsServerError(err error, code string) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return code == "" || serverErr.Code == code
	}
	return false
}

// IsQueueExpired reports whether err says the event queue is no longer
// known to the server. Servers that predate error codes only report the
// message text, so that is checked as well.
func IsQueueExpired(err error) bool {
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	if serverErr.Code == CodeBadEventQueueID {
		return true
	}
	return serverErr.Code == "" && serverErr.Message == "Bad event queue id"
}

// IsTransportError reports whether err is a *TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsProtocolError reports whether err is a *ProtocolError.
func IsProtocolError(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}
