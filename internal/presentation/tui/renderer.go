package tui

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a function that renders markdown using glamour.
// When the renderer cannot be created the text is returned unchanged.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return PlainRenderer
	}

	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown, err
		}
		return strings.Trim(out, "\n"), nil
	}
}

// PlainRenderer returns text unchanged.
func PlainRenderer(text string) (string, error) {
	return text, nil
}

// Styler colors chat chrome (prompts, state names, errors) on w.
type Styler struct {
	out *termenv.Output
}

// NewStyler creates a Styler for w. Colors are dropped when w is not a terminal.
func NewStyler(w io.Writer) *Styler {
	return &Styler{out: termenv.NewOutput(w)}
}

func (s *Styler) Prompt(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#a78bfa")).Bold().String()
}

func (s *Styler) State(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#38bdf8")).String()
}

func (s *Styler) Error(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#fb7185")).String()
}

func (s *Styler) Faint(text string) string {
	return s.out.String(text).Faint().String()
}
