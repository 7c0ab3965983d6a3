// Package graph renders dialogue models as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Overlay contains session data to visualize on the graph.
type Overlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart of model. It applies semantic
// styling:
//   - Init: ((Circle))
//   - Default_Fallback: {{Hexagon}}
//   - Other states: [Rectangle]
//
// Body and fallback actions are listed in the state label. Wildcard
// transitions are drawn dotted. Overlay styles are applied when overlay is
// not nil.
func GenerateMermaid(model *domain.Model, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if model == nil {
		return sb.String()
	}

	for _, s := range model.States {
		id := sanitizeMermaidID(s.Name)

		opener, closer := "[", "]"
		switch {
		case s.IsInit():
			opener, closer = "((", "))"
		case s.IsFallback():
			opener, closer = "{{", "}}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, stateLabel(s), closer)

		for _, t := range s.Transitions {
			if t.Target == nil {
				continue
			}
			label := escapeLabel(t.Describe())
			to := sanitizeMermaidID(t.Target.Name)
			if t.Wildcard {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", id, label, to)
				continue
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", id, label, to)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.VisitedStates {
			id := sanitizeMermaidID(name)
			if id != "" && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

func stateLabel(s *domain.State) string {
	label := escapeLabel(s.Name)
	if names := actionNames(s.Body); names != "" {
		label += "<br/>do: " + names
	}
	if names := actionNames(s.Fallback); names != "" {
		label += "<br/>fallback: " + names
	}
	return label
}

func actionNames(specs []domain.ActionSpec) string {
	names := make([]string, len(specs))
	for i, a := range specs {
		names[i] = escapeLabel(a.Action)
	}
	return strings.Join(names, ", ")
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(
		".", "_",
		"-", "_",
		"/", "_",
		"\\", "_",
		" ", "_",
	).Replace(id)
}
