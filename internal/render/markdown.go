package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders md for the terminal. On renderer failure the raw text is
// returned together with the error so callers can still print something.
func Markdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md, err
	}
	out, err := r.Render(md)
	if err != nil {
		return md, err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// Bullets formats lines as a Markdown list.
func Bullets(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}
