// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/zulip/zulip"
)

// timestampLayout is used for message headers. Times are shown in the
// local zone.
const timestampLayout = "2006-01-02 15:04"

// Message renders a header line followed by the message body indented
// by two columns.
func Message(message zulip.Message, options Options) string {
	options = options.withDefaults()
	body := Markdown(message.Content, Options{
		Width: options.Width - 2,
		Theme: options.Theme,
		Plain: options.Plain,
	})
	header := Header(message, options)
	if body == "" {
		return header
	}
	return header + "\n" + indent(body, "  ")
}

// Header renders "Sender · stream > topic · time". Direct messages show
// the other participants in place of the stream and topic.
func Header(message zulip.Message, options Options) string {
	options = options.withDefaults()
	lip := newLipRenderer(options.Plain)
	theme := options.Theme

	sender := message.SenderFullName
	if sender == "" {
		sender = message.SenderEmail
	}
	parts := []string{lip.NewStyle().Bold(true).Foreground(theme.Sender).Render(sender)}

	if stream := StreamName(message); stream != "" {
		location := lip.NewStyle().Foreground(theme.Stream).Render("#" + stream)
		if message.Subject != "" {
			location += lip.NewStyle().Foreground(theme.FaintText).Render(" > ") +
				lip.NewStyle().Foreground(theme.Topic).Render(message.Subject)
		}
		parts = append(parts, location)
	} else if participants := Participants(message); len(participants) > 0 {
		parts = append(parts, lip.NewStyle().Foreground(theme.Stream).Render("→ "+strings.Join(participants, ", ")))
	}

	if message.Timestamp > 0 {
		stamp := time.Unix(message.Timestamp, 0).Local().Format(timestampLayout)
		parts = append(parts, lip.NewStyle().Foreground(theme.FaintText).Render(stamp))
	}

	separator := lip.NewStyle().Foreground(theme.FaintText).Render(" · ")
	return ansi.Truncate(strings.Join(parts, separator), options.Width, "…")
}

// StreamName returns the stream a message was sent to, or "" for direct
// messages. The server reports the stream name as a JSON string in
// display_recipient.
func StreamName(message zulip.Message) string {
	var name string
	if json.Unmarshal(message.DisplayRecipient, &name) != nil {
		return ""
	}
	return name
}

// Participants returns the email addresses of a direct message's
// recipients. It returns nil for stream messages.
func Participants(message zulip.Message) []string {
	var recipients []struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	if json.Unmarshal(message.DisplayRecipient, &recipients) != nil {
		return nil
	}
	var emails []string
	for _, recipient := range recipients {
		if recipient.Email != "" {
			emails = append(emails, recipient.Email)
		}
	}
	return emails
}

func indent(content, prefix string) string {
	lines := strings.Split(content, "\n")
	for index, line := range lines {
		if line != "" {
			lines[index] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
