// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette for rendered messages. Colors are ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	LinkForeground   lipgloss.Color

	// Mention colors "@**Full Name**" references.
	Mention lipgloss.Color

	// Message header parts.
	Sender lipgloss.Color
	Stream lipgloss.Color
	Topic  lipgloss.Color
}

// DefaultTheme is tuned for dark terminals.
var DefaultTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("245"),
	HeaderForeground: lipgloss.Color("75"),
	BorderColor:      lipgloss.Color("240"),
	LinkForeground:   lipgloss.Color("39"),
	Mention:          lipgloss.Color("214"),
	Sender:           lipgloss.Color("114"),
	Stream:           lipgloss.Color("75"),
	Topic:            lipgloss.Color("180"),
}

// Options controls rendering.
type Options struct {
	// Width is the wrap column. Values below 20 are raised to 20.
	Width int
	// Theme defaults to DefaultTheme when zero.
	Theme Theme
	// Plain disables all styling.
	Plain bool
}

func (o Options) withDefaults() Options {
	if o.Width < 20 {
		o.Width = 20
	}
	if o.Theme == (Theme{}) {
		o.Theme = DefaultTheme
	}
	return o
}
