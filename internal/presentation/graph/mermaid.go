package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/moore"
)

// Overlay contains conversation data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of the machine.
// The initial state is drawn as a circle and the terminal state as a
// double circle. Edges carry their transition condition. When overlay is
// set, visited and current states are styled.
func GenerateMermaid(def moore.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, s := range def.States {
		safeID := sanitizeMermaidID(s.ID)

		opener, closer := "[", "]"
		switch s.ID {
		case def.Initial:
			opener, closer = "((", "))"
		case def.Terminal:
			opener, closer = "(((", ")))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, s.ID, closer)

		for _, target := range slices.Sorted(maps.Keys(s.Transitions)) {
			cond := strings.ReplaceAll(s.Transitions[target], "\"", "'")
			if cond == "" {
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(target))
				continue
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, cond, sanitizeMermaidID(target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
