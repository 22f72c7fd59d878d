// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/render"
	"github.com/bureau-foundation/zulip/zulip"
)

// maxScrollback is how many messages the TUI keeps.
const maxScrollback = 500

type tuiParams struct {
	cli.SessionConfig
	narrowParams
	AllPublicStreams bool   `json:"all_public_streams" flag:"all-public-streams" desc:"receive messages from public streams you are not subscribed to"`
	StateFile        string `json:"state"              flag:"state"              desc:"checkpoint file for resuming the queue (default: watch.state_file setting)"`
	Stream           string `json:"stream"             flag:"stream,s"           desc:"stream to post typed messages to"`
	Topic            string `json:"topic"              flag:"topic,t"            desc:"topic to post typed messages to"`
}

// TUICommand returns the "tui" command: a full-screen live view of a
// narrow with an input line for posting.
func TUICommand() *cli.Command {
	var params tuiParams

	return &cli.Command{
		Name:    "tui",
		Summary: "Interactive full-screen chat view",
		Description: `Follow the narrows like "zulip watch" in a full-screen view, with an
input line that posts to --stream and --topic. Without both, the view
is read-only.

Keys: Enter sends, PgUp/PgDn scroll, Esc or Ctrl-C quits. Warnings
(retries, re-registration) appear in the status line.`,
		Usage: "zulip tui [flags]",
		Examples: []cli.Example{
			{Description: "Chat in one topic", Command: "zulip tui -n stream:ops -n topic:deploys -s ops -t deploys"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("tui", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q\n\nusage: zulip tui [flags]", args[0])
			}
			if (params.Stream == "") != (params.Topic == "") {
				return cli.Validation("--stream and --topic must be given together")
			}
			return runTUI(&params)
		},
	}
}

func runTUI(params *tuiParams) error {
	narrows, fileAllPublic, err := params.resolve()
	if err != nil {
		return err
	}

	// stderr belongs to the alternate screen while the program runs.
	handler := newStatusLogHandler(slog.LevelInfo)
	logger := slog.New(handler).With("command", "tui")
	session, err := params.Connect(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	stateFile := params.StateFile
	if stateFile == "" {
		stateFile = session.Config.Watch.StateFile
	}

	ctx, stop := signalContext()
	defer stop()
	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	f, done, err := startFeed(pumpCtx, session, narrows, fileAllPublic || params.AllPublicStreams, stateFile, logger)
	if err != nil {
		return err
	}

	var send sendFunc
	if params.Stream != "" {
		client := session.Client
		stream, topic := params.Stream, params.Topic
		send = func(content string) tea.Cmd {
			return func() tea.Msg {
				requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
				defer cancel()
				id, err := client.PostMessage(requestCtx, zulip.PostRequest{Stream: stream, Topic: topic, Content: content})
				return sentMsg{ID: id, Err: err}
			}
		}
	}

	model := newChatModel(f.subscription.C, send, params.Stream, params.Topic)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	handler.setProgram(program)
	_, runErr := program.Run()
	handler.setProgram(nil)

	cancelPump()
	if err := f.finish(<-done); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil {
		return cli.Internal("terminal UI: %w", runErr)
	}
	return nil
}

// sendFunc posts content and reports the outcome as a sentMsg. Nil
// makes the view read-only.
type sendFunc func(content string) tea.Cmd

type (
	// incomingMsg carries one message from the feed.
	incomingMsg zulip.Message
	// feedClosedMsg reports that the feed ended.
	feedClosedMsg struct{}
	// sentMsg reports a post.
	sentMsg struct {
		ID  int64
		Err error
	}
)

// chatKeyMap holds the TUI's bindings. Printable keys always go to the
// input line.
type chatKeyMap struct {
	Send     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

var defaultChatKeys = chatKeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("Esc", "quit"),
	),
}

type chatModel struct {
	keys     chatKeyMap
	viewport viewport.Model
	input    textinput.Model

	feed     <-chan zulip.Message
	send     sendFunc
	stream   string
	topic    string
	messages []zulip.Message
	// rendered holds messages rendered at the viewport width.
	rendered []string

	status      string
	statusLevel slog.Level
	feedClosed  bool
	ready       bool
	width       int
}

func newChatModel(feed <-chan zulip.Message, send sendFunc, stream, topic string) chatModel {
	input := textinput.New()
	input.Prompt = "> "
	if send == nil {
		input.Placeholder = "read-only: start with --stream and --topic to post"
	} else {
		input.Placeholder = "message #" + stream + " > " + topic
	}
	input.Focus()
	return chatModel{
		keys:   defaultChatKeys,
		input:  input,
		feed:   feed,
		send:   send,
		stream: stream,
		topic:  topic,
		status: "connected",
	}
}

// waitForMessage reads the next feed message as a tea.Msg.
func waitForMessage(feed <-chan zulip.Message) tea.Cmd {
	return func() tea.Msg {
		message, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return incomingMsg(message)
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForMessage(m.feed))
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-2, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.rendered = make([]string, 0, len(m.messages))
		for _, message := range m.messages {
			m.rendered = append(m.rendered, m.renderMessage(message))
		}
		m.refresh(true)
		return m, nil

	case incomingMsg:
		following := !m.ready || m.viewport.AtBottom()
		m.messages = append(m.messages, zulip.Message(msg))
		m.rendered = append(m.rendered, m.renderMessage(zulip.Message(msg)))
		if len(m.messages) > maxScrollback {
			m.messages = m.messages[len(m.messages)-maxScrollback:]
			m.rendered = m.rendered[len(m.rendered)-maxScrollback:]
		}
		m.refresh(following)
		return m, waitForMessage(m.feed)

	case feedClosedMsg:
		m.feedClosed = true
		m.setStatus("feed closed", slog.LevelWarn)
		return m, nil

	case sentMsg:
		if msg.Err != nil {
			m.setStatus("send failed: "+msg.Err.Error(), slog.LevelError)
		} else {
			m.setStatus("sent", slog.LevelInfo)
		}
		return m, nil

	case statusMsg:
		m.setStatus(msg.Text, msg.Level)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.LineUp(max(m.viewport.Height-1, 1))
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.LineDown(max(m.viewport.Height-1, 1))
			return m, nil
		case key.Matches(msg, m.keys.Send):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	if m.send == nil {
		m.setStatus("read-only: no --stream and --topic", slog.LevelWarn)
		return m, nil
	}
	m.input.Reset()
	m.setStatus("sending...", slog.LevelInfo)
	return m, m.send(content)
}

func (m *chatModel) setStatus(text string, level slog.Level) {
	m.status = text
	m.statusLevel = level
}

func (m *chatModel) renderMessage(message zulip.Message) string {
	width := m.viewport.Width
	if !m.ready {
		width = defaultWidth
	}
	return render.Message(message, render.Options{Width: width})
}

// refresh loads the rendered scrollback into the viewport.
func (m *chatModel) refresh(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.rendered, "\n\n"))
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

func (m chatModel) View() string {
	if !m.ready {
		return "connecting..."
	}
	statusStyle := lipgloss.NewStyle().Foreground(render.DefaultTheme.FaintText)
	switch {
	case m.statusLevel >= slog.LevelError:
		statusStyle = statusStyle.Foreground(lipgloss.Color("203"))
	case m.statusLevel >= slog.LevelWarn:
		statusStyle = statusStyle.Foreground(render.DefaultTheme.Mention)
	}
	help := m.keys.Send.Help().Key + " " + m.keys.Send.Help().Desc + " · " +
		m.keys.PageUp.Help().Key + "/" + m.keys.PageDown.Help().Key + " scroll · " +
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc
	status := statusStyle.Render(m.status) + statusStyle.Render("  ["+help+"]")
	status = lipgloss.NewStyle().MaxWidth(max(m.width, 1)).Render(status)
	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
