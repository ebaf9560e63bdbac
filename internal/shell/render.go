// Package shell is the terminal presentation of a session: it follows the
// controller's events, streams the poem as it grows and renders the result.
package shell

import (
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"poemd/pkg/types"
)

var boldSpan = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// PlainRenderer returns a renderer without colors or text attributes.
func PlainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

// Render formats text for the given view. The raw view returns text
// unchanged. The rendered view reads it as light markdown: '#' headings and
// **bold** spans are emphasized, '-'/'*' list items become bullets and the
// block is indented. A nil renderer renders without attributes.
func Render(r *lipgloss.Renderer, text, view string) string {
	if view != types.ViewRendered || text == "" {
		return text
	}
	if r == nil {
		r = PlainRenderer()
	}
	heading := r.NewStyle().Bold(true).Underline(true)
	bold := r.NewStyle().Bold(true)

	src := strings.Split(strings.TrimRight(text, "\n"), "\n")
	lines := make([]string, 0, len(src))
	for _, line := range src {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			lines = append(lines, heading.Render(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			lines = append(lines, "• "+emphasize(bold, trimmed[2:]))
		default:
			lines = append(lines, emphasize(bold, line))
		}
	}
	return r.NewStyle().PaddingLeft(2).Render(strings.Join(lines, "\n"))
}

func emphasize(s lipgloss.Style, line string) string {
	return boldSpan.ReplaceAllStringFunc(line, func(m string) string {
		return s.Render(boldSpan.FindStringSubmatch(m)[1])
	})
}
