// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/zulip/zulip"
)

// ErrorCategory classifies command errors so scripts can decide
// whether to fix their input, retry, or report.
type ErrorCategory string

const (
	// CategoryValidation means the input was wrong: a missing argument,
	// an unparseable narrow, a request the server rejected as invalid.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound means a named stream, queue or file does not
	// exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden means the credentials were refused or lack
	// permission.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryTransient means the failure may not repeat: the network,
	// a rate limit, a proxy answering in place of the server.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal is everything else.
	CategoryInternal ErrorCategory = "internal"
)

// ExitCode maps a category to the process exit status.
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryForbidden:
		return 4
	case CategoryTransient:
		return 5
	default:
		return 1
	}
}

// ToolError is a categorized command error. It wraps the cause so
// errors.Is and errors.As see the whole chain.
type ToolError struct {
	Category ErrorCategory
	Err      error

	// Hint is an optional next step printed after the message.
	Hint string
}

func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

func (e *ToolError) Unwrap() error { return e.Err }

// WithHint sets the hint and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// FromAPIError wraps an error returned by the zulip client as
// "action: err" and categorizes it by its type and server code. A nil
// err yields nil; a ToolError keeps its category.
func FromAPIError(action string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", action, err)

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return &ToolError{Category: toolErr.Category, Err: wrapped, Hint: toolErr.Hint}
	}

	if errors.Is(err, zulip.ErrStreamCreatedUnresolved) {
		return (&ToolError{Category: CategoryTransient, Err: wrapped}).
			WithHint("The stream exists; run 'zulip stream id <name>' to look up its id.")
	}

	var serverErr *zulip.ServerError
	if errors.As(err, &serverErr) {
		switch {
		case serverErr.Code == zulip.CodeRateLimitHit:
			return &ToolError{Category: CategoryTransient, Err: wrapped}
		case serverErr.Code == zulip.CodeUnauthorized || serverErr.StatusCode == http.StatusUnauthorized:
			return (&ToolError{Category: CategoryForbidden, Err: wrapped}).
				WithHint("Check email and api_key with 'zulip config show'.")
		case serverErr.StatusCode == http.StatusForbidden:
			return &ToolError{Category: CategoryForbidden, Err: wrapped}
		case serverErr.Code == zulip.CodeStreamDoesNotExist || serverErr.Code == zulip.CodeBadEventQueueID:
			return &ToolError{Category: CategoryNotFound, Err: wrapped}
		default:
			return &ToolError{Category: CategoryValidation, Err: wrapped}
		}
	}

	var protocolErr *zulip.ProtocolError
	if errors.As(err, &protocolErr) && protocolErr.StatusCode >= 500 {
		return &ToolError{Category: CategoryTransient, Err: wrapped}
	}
	if zulip.IsTransportError(err) {
		return &ToolError{Category: CategoryTransient, Err: wrapped}
	}
	return &ToolError{Category: CategoryInternal, Err: wrapped}
}
