package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the moore banner to w, colored when w supports it.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{" _ __ ___   ___   ___  _ __ ___", "#818cf8"},
		{"| '_ ` _ \\ / _ \\ / _ \\| '__/ _ \\", "#a78bfa"},
		{"| | | | | | (_) | (_) | | |  __/", "#c084fc"},
		{"|_| |_| |_|\\___/ \\___/|_|  \\___|", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
