// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// statusMsg replaces the TUI status line.
type statusMsg struct {
	Text  string
	Level slog.Level
}

// statusLogHandler is a slog.Handler that shows records in the TUI
// status line. Records before setProgram are dropped, as are records
// below level.
type statusLogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
}

func newStatusLogHandler(level slog.Level) *statusLogHandler {
	return &statusLogHandler{level: level, program: &atomic.Pointer[tea.Program]{}}
}

// setProgram is shared by every handler derived with WithAttrs.
func (h *statusLogHandler) setProgram(program *tea.Program) {
	h.program.Store(program)
}

func (h *statusLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *statusLogHandler) Handle(_ context.Context, record slog.Record) error {
	program := h.program.Load()
	if program == nil {
		return nil
	}
	var parts []string
	appendAttr := func(attr slog.Attr) bool {
		// The command name is the same on every line.
		if attr.Key != "command" {
			parts = append(parts, attr.Key+"="+attr.Value.String())
		}
		return true
	}
	for _, attr := range h.attrs {
		appendAttr(attr)
	}
	record.Attrs(appendAttr)

	text := record.Message
	if len(parts) > 0 {
		text += " (" + strings.Join(parts, ", ") + ")"
	}
	// Send blocks until the program reads it, so never call it from
	// inside Update.
	go program.Send(statusMsg{Text: text, Level: record.Level})
	return nil
}

func (h *statusLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &statusLogHandler{
		level:   h.level,
		program: h.program,
		attrs:   append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup is accepted but groups are flattened.
func (h *statusLogHandler) WithGroup(string) slog.Handler {
	return h
}
