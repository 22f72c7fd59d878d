// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns chat messages into styled terminal text.
//
// [Markdown] renders the raw markdown a sender typed (fetch history with
// RawContent set to get it): paragraphs reflow to the target
// width, fenced code is syntax-highlighted with Chroma, and the
// platform's own conventions are recognized: "@**Full Name**" mentions
// are highlighted and "```quote" fences render as block quotes.
// [Message] prefixes the body with a one-line header naming the sender,
// the stream and topic, and the send time.
//
// Output uses the ANSI 256-color profile unless [Options].Plain is set,
// in which case no escape sequences are emitted at all. Plain output is
// what the CLI writes when stdout is not a terminal.
package render
