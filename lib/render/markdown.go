// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break after in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func getParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Markdown renders message markdown as terminal text. Soft line breaks
// become spaces so the text reflows at options.Width.
func Markdown(content string, options Options) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	options = options.withDefaults()

	renderer := &markdownRenderer{
		theme:       options.Theme,
		width:       options.Width,
		plain:       options.Plain,
		lipRenderer: newLipRenderer(options.Plain),
	}
	renderer.renderDocument([]byte(content))
	return strings.TrimRight(renderer.output.String(), "\n")
}

// newLipRenderer pins the color profile. lipgloss would otherwise
// detect it from the environment and emit nothing when there is no
// TTY, which is wrong for a TUI and for tests.
func newLipRenderer(plain bool) *lipgloss.Renderer {
	profile := termenv.ANSI256
	if plain {
		profile = termenv.Ascii
	}
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return renderer
}

// markdownRenderer walks a goldmark AST directly. Paragraph content
// accumulates in inline and is word-wrapped as a unit when the
// paragraph closes.
type markdownRenderer struct {
	source []byte
	theme  Theme
	width  int
	plain  bool

	output strings.Builder
	inline strings.Builder

	prefixStack     []prefixLevel
	linePrefix      string
	linePrefixWidth int

	// pendingBullet replaces linePrefix for the next emitted line only.
	pendingBullet string

	boldCount          int
	italicCount        int
	strikethroughCount int
	mentionCount       int

	listStack []listState

	lipRenderer *lipgloss.Renderer

	trailingNewlines int
}

type prefixLevel struct {
	text  string
	width int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
}

// renderDocument parses source and renders it into the output. It is
// re-entered for the body of quote fences, so it restores source on
// return.
func (renderer *markdownRenderer) renderDocument(source []byte) {
	saved := renderer.source
	renderer.source = source
	document := getParser().Parser().Parse(text.NewReader(source))
	ast.Walk(document, renderer.walk)
	renderer.source = saved
}

func (renderer *markdownRenderer) newStyle() lipgloss.Style {
	return renderer.lipRenderer.NewStyle()
}

func (renderer *markdownRenderer) faint(content string) string {
	return renderer.newStyle().Foreground(renderer.theme.FaintText).Render(content)
}

func (renderer *markdownRenderer) currentWidth() int {
	return max(renderer.width-renderer.linePrefixWidth, 10)
}

func (renderer *markdownRenderer) pushPrefix(prefixText string, visibleWidth int) {
	renderer.prefixStack = append(renderer.prefixStack, prefixLevel{text: prefixText, width: visibleWidth})
	renderer.linePrefix += prefixText
	renderer.linePrefixWidth += visibleWidth
}

func (renderer *markdownRenderer) popPrefix() {
	if len(renderer.prefixStack) == 0 {
		return
	}
	top := renderer.prefixStack[len(renderer.prefixStack)-1]
	renderer.prefixStack = renderer.prefixStack[:len(renderer.prefixStack)-1]
	renderer.linePrefix = renderer.linePrefix[:len(renderer.linePrefix)-len(top.text)]
	renderer.linePrefixWidth -= top.width
}

func (renderer *markdownRenderer) inTightList() bool {
	if len(renderer.listStack) == 0 {
		return false
	}
	return renderer.listStack[len(renderer.listStack)-1].tight
}

func (renderer *markdownRenderer) writeOutput(s string) {
	if s == "" {
		return
	}
	renderer.output.WriteString(s)

	trimmed := strings.TrimRight(s, "\n")
	added := len(s) - len(trimmed)
	if trimmed == "" {
		renderer.trailingNewlines += added
	} else {
		renderer.trailingNewlines = added
	}
}

func (renderer *markdownRenderer) ensureNewline() {
	if renderer.trailingNewlines < 1 {
		renderer.writeOutput("\n")
	}
}

// ensureBlankLine separates blocks. Nothing is emitted at the start of
// the output.
func (renderer *markdownRenderer) ensureBlankLine() {
	if renderer.output.Len() == 0 {
		return
	}
	for renderer.trailingNewlines < 2 {
		renderer.writeOutput("\n")
	}
}

func (renderer *markdownRenderer) consumeLinePrefix() string {
	if renderer.pendingBullet != "" {
		bullet := renderer.pendingBullet
		renderer.pendingBullet = ""
		return bullet
	}
	return renderer.linePrefix
}

func (renderer *markdownRenderer) applyPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	for index, line := range lines {
		if index == 0 {
			lines[index] = renderer.consumeLinePrefix() + line
		} else {
			lines[index] = renderer.linePrefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func (renderer *markdownRenderer) flushInline() string {
	content := renderer.inline.String()
	renderer.inline.Reset()
	if content == "" {
		return ""
	}
	content = ansi.Wrap(content, renderer.currentWidth(), wrapBreakpoints)
	return renderer.applyPrefixes(content)
}

func (renderer *markdownRenderer) styledText(content string) string {
	style := renderer.newStyle().Foreground(renderer.theme.NormalText)
	if renderer.mentionCount > 0 {
		style = style.Foreground(renderer.theme.Mention).Bold(true)
	} else if renderer.boldCount > 0 {
		style = style.Bold(true)
	}
	if renderer.italicCount > 0 {
		style = style.Italic(true)
	}
	if renderer.strikethroughCount > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (renderer *markdownRenderer) highlightCode(code, language string) string {
	if language == "" || renderer.plain {
		return renderer.faint(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return renderer.faint(code)
	}
	return buffer.String()
}

func (renderer *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			renderer.inline.Reset()
			return ast.WalkContinue, nil
		}
		if flushed := renderer.flushInline(); flushed != "" {
			renderer.writeOutput(flushed)
			renderer.ensureNewline()
			if !renderer.inTightList() {
				renderer.ensureBlankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			renderer.inline.Reset()
		} else {
			renderer.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			renderer.renderFencedCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			renderer.writeCodeLines(renderer.faint(renderer.blockText(node)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			renderer.pushPrefix(renderer.quoteBar(), 2)
		} else {
			renderer.popPrefix()
			renderer.ensureBlankLine()
		}

	case ast.KindList:
		if entering {
			renderer.enterList(node.(*ast.List))
		} else {
			renderer.leaveList()
		}

	case ast.KindListItem:
		if entering {
			renderer.enterListItem()
		} else {
			renderer.leaveListItem()
		}

	case ast.KindThematicBreak:
		if entering {
			rule := renderer.newStyle().Foreground(renderer.theme.BorderColor).
				Render(strings.Repeat("─", renderer.currentWidth()))
			renderer.ensureBlankLine()
			renderer.writeOutput(renderer.applyPrefixes(rule))
			renderer.ensureNewline()
			renderer.ensureBlankLine()
		}

	case ast.KindHTMLBlock:
		if entering {
			if stripped := strings.TrimSpace(stripHTMLTags(renderer.blockText(node))); stripped != "" {
				renderer.writeOutput(renderer.applyPrefixes(renderer.faint(stripped)))
				renderer.ensureNewline()
				renderer.ensureBlankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			renderer.handleText(node.(*ast.Text))
		}

	case ast.KindString:
		if entering {
			renderer.inline.WriteString(renderer.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		renderer.handleEmphasis(node.(*ast.Emphasis), entering)

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch child := child.(type) {
				case *ast.Text:
					code.Write(child.Segment.Value(renderer.source))
				case *ast.String:
					code.Write(child.Value)
				}
			}
			renderer.inline.WriteString(renderer.faint(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			renderer.inline.WriteString(renderer.renderInlineContent(link))
			if destination := string(link.Destination); destination != "" {
				renderer.inline.WriteString(" " + renderer.faint("("+destination+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(renderer.source))
			renderer.inline.WriteString(renderer.newStyle().
				Foreground(renderer.theme.LinkForeground).Underline(true).Render(url))
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			alt := ansi.Strip(renderer.renderInlineContent(image))
			renderer.inline.WriteString(renderer.faint(fmt.Sprintf("[image: %s] (%s)", alt, image.Destination)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := 0; index < raw.Segments.Len(); index++ {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(renderer.source))
			}
			if stripped := stripHTMLTags(html.String()); stripped != "" {
				renderer.inline.WriteString(renderer.styledText(stripped))
			}
		}

	case extast.KindStrikethrough:
		if entering {
			renderer.strikethroughCount++
		} else {
			renderer.strikethroughCount--
		}

	case extast.KindTable:
		if entering {
			renderer.renderTable(node)
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				renderer.inline.WriteString(renderer.styledText("[x] "))
			} else {
				renderer.inline.WriteString(renderer.styledText("[ ] "))
			}
		}
	}

	return ast.WalkContinue, nil
}

func (renderer *markdownRenderer) quoteBar() string {
	return renderer.newStyle().Foreground(renderer.theme.BorderColor).Render("│") + " "
}

// blockText concatenates the source lines of a block node.
func (renderer *markdownRenderer) blockText(node ast.Node) string {
	var builder strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		builder.Write(segment.Value(renderer.source))
	}
	return builder.String()
}

func (renderer *markdownRenderer) leaveHeading(heading *ast.Heading) {
	content := ansi.Strip(renderer.inline.String())
	renderer.inline.Reset()
	if content == "" {
		return
	}
	style := renderer.newStyle().Bold(true).Foreground(renderer.theme.NormalText)
	if heading.Level <= 2 {
		style = style.Foreground(renderer.theme.HeaderForeground)
	}
	wrapped := ansi.Wrap(style.Render(content), renderer.currentWidth(), wrapBreakpoints)
	renderer.ensureBlankLine()
	renderer.writeOutput(renderer.applyPrefixes(wrapped))
	renderer.ensureNewline()
	renderer.ensureBlankLine()
}

// renderFencedCodeBlock highlights code fences. The platform uses the
// fence language for two block types of its own: "quote" wraps ordinary
// markdown in a block quote and "spoiler" hides content behind a header
// line, which a terminal shows as the header followed by the content.
func (renderer *markdownRenderer) renderFencedCodeBlock(node *ast.FencedCodeBlock) {
	language := string(node.Language(renderer.source))
	body := renderer.blockText(node)

	switch {
	case language == "quote":
		renderer.ensureBlankLine()
		renderer.pushPrefix(renderer.quoteBar(), 2)
		renderer.renderDocument([]byte(body))
		renderer.popPrefix()
		renderer.ensureBlankLine()
		return
	case language == "spoiler":
		header := ""
		if node.Info != nil {
			info := strings.TrimSpace(string(node.Info.Segment.Value(renderer.source)))
			header = strings.TrimSpace(strings.TrimPrefix(info, "spoiler"))
		}
		if header == "" {
			header = "Spoiler"
		}
		renderer.ensureBlankLine()
		renderer.writeOutput(renderer.applyPrefixes(renderer.newStyle().Bold(true).
			Foreground(renderer.theme.FaintText).Render("▸ " + header)))
		renderer.ensureNewline()
		renderer.pushPrefix("  ", 2)
		renderer.renderDocument([]byte(body))
		renderer.popPrefix()
		renderer.ensureBlankLine()
		return
	}

	renderer.writeCodeLines(renderer.highlightCode(body, language))
}

func (renderer *markdownRenderer) writeCodeLines(code string) {
	renderer.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		renderer.writeOutput(renderer.consumeLinePrefix() + line)
		renderer.ensureNewline()
	}
	renderer.ensureBlankLine()
}

func (renderer *markdownRenderer) enterList(list *ast.List) {
	start := 0
	if list.IsOrdered() {
		start = list.Start
	}
	renderer.listStack = append(renderer.listStack, listState{
		ordered: list.IsOrdered(),
		counter: start,
		tight:   list.IsTight,
	})
}

func (renderer *markdownRenderer) leaveList() {
	if len(renderer.listStack) > 0 {
		renderer.listStack = renderer.listStack[:len(renderer.listStack)-1]
	}
	if !renderer.inTightList() {
		renderer.ensureBlankLine()
	}
}

func (renderer *markdownRenderer) enterListItem() {
	if len(renderer.listStack) == 0 {
		return
	}
	top := &renderer.listStack[len(renderer.listStack)-1]

	bullet := "- "
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.counter)
		top.counter++
	}
	// ASCII bullets: byte length is the visible width.
	renderer.pendingBullet = renderer.linePrefix + bullet
	renderer.pushPrefix(strings.Repeat(" ", len(bullet)), len(bullet))
}

func (renderer *markdownRenderer) leaveListItem() {
	renderer.popPrefix()
	if renderer.inTightList() {
		renderer.ensureNewline()
	} else {
		renderer.ensureBlankLine()
	}
}

func (renderer *markdownRenderer) handleText(node *ast.Text) {
	renderer.inline.WriteString(renderer.styledText(string(node.Segment.Value(renderer.source))))
	if node.SoftLineBreak() {
		renderer.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		renderer.inline.WriteString("\n")
	}
}

// handleEmphasis tracks emphasis nesting. Strong emphasis directly
// after "@" is a user mention ("@**Full Name**") and is colored as one.
func (renderer *markdownRenderer) handleEmphasis(node *ast.Emphasis, entering bool) {
	if node.Level < 2 {
		if entering {
			renderer.italicCount++
		} else {
			renderer.italicCount--
		}
		return
	}
	if renderer.isMention(node) {
		if entering {
			renderer.mentionCount++
		} else {
			renderer.mentionCount--
		}
		return
	}
	if entering {
		renderer.boldCount++
	} else {
		renderer.boldCount--
	}
}

func (renderer *markdownRenderer) isMention(node *ast.Emphasis) bool {
	previous, ok := node.PreviousSibling().(*ast.Text)
	if !ok || previous.SoftLineBreak() || previous.HardLineBreak() {
		return false
	}
	value := previous.Segment.Value(renderer.source)
	return len(value) > 0 && value[len(value)-1] == '@'
}

// renderInlineContent renders a node's children into a string without
// disturbing the caller's inline buffer or style state.
func (renderer *markdownRenderer) renderInlineContent(node ast.Node) string {
	savedInline := renderer.inline.String()
	savedBold, savedItalic, savedStrike := renderer.boldCount, renderer.italicCount, renderer.strikethroughCount

	renderer.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, renderer.walk)
	}
	result := renderer.inline.String()

	renderer.inline.Reset()
	renderer.inline.WriteString(savedInline)
	renderer.boldCount, renderer.italicCount, renderer.strikethroughCount = savedBold, savedItalic, savedStrike
	return result
}

// renderTable lays cells out in columns padded to the widest cell.
// Columns are not shrunk to fit the width; long tables wrap per line.
func (renderer *markdownRenderer) renderTable(table ast.Node) {
	var rows [][]string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(renderer.renderInlineContent(cell)))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	var widths []int
	for _, cells := range rows {
		for index, cell := range cells {
			if index >= len(widths) {
				widths = append(widths, 0)
			}
			widths[index] = max(widths[index], lipgloss.Width(cell))
		}
	}

	border := renderer.newStyle().Foreground(renderer.theme.BorderColor)
	separator := border.Render(" │ ")
	renderer.ensureBlankLine()
	for rowIndex, cells := range rows {
		padded := make([]string, len(cells))
		for index, cell := range cells {
			padded[index] = cell + strings.Repeat(" ", widths[index]-lipgloss.Width(cell))
		}
		line := strings.Join(padded, separator)
		if rowIndex == 0 {
			line = renderer.newStyle().Bold(true).Render(ansi.Strip(line))
		}
		renderer.writeOutput(renderer.applyPrefixes(strings.TrimRight(line, " ")))
		renderer.ensureNewline()
		if rowIndex == 0 {
			rules := make([]string, len(widths))
			for index, width := range widths {
				rules[index] = strings.Repeat("─", width)
			}
			renderer.writeOutput(renderer.applyPrefixes(border.Render(strings.Join(rules, "─┼─"))))
			renderer.ensureNewline()
		}
	}
	renderer.ensureBlankLine()
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func stripHTMLTags(html string) string {
	return htmlTagPattern.ReplaceAllString(html, "")
}
