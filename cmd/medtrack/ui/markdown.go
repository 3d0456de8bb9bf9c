package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies with glamour, word-wrapped to a width.
type Markdown struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdown creates a renderer for width columns. style is a glamour
// standard style name ("dark", "light", "notty").
func NewMarkdown(width int, style string) *Markdown {
	if width < 20 {
		width = 20
	}
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	return &Markdown{renderer: r, width: width}
}

// Width returns the wrap width.
func (m *Markdown) Width() int { return m.width }

// Render returns text rendered as markdown, or text unchanged when rendering
// fails.
func (m *Markdown) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
