package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/colloquy/internal/presentation/tui"
	"github.com/aretw0/colloquy/pkg/domain"
)

// RunDescribe prints a markdown description of the model, rendered for the
// terminal unless raw is set.
func RunDescribe(ctx context.Context, opts Options, out io.Writer, raw bool) error {
	model, _, err := inspect(ctx, opts)
	if err != nil {
		return err
	}
	doc := DescribeModel(model)
	if raw {
		_, err := io.WriteString(out, doc)
		return err
	}
	render, err := tui.NewRenderer(100)
	if err != nil {
		return err
	}
	rendered, err := render(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

// DescribeModel renders model as markdown: its imports, its events and one
// section per state.
func DescribeModel(model *domain.Model) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", model.Name)

	if len(model.Imports) > 0 {
		sb.WriteString("## Imports\n\n")
		for _, imp := range model.Imports {
			fmt.Fprintf(&sb, "- `%s` from %s (%d events)\n", imp.Alias, imp.Path, len(imp.Events))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Events\n\n")
	sb.WriteString("| Name | Kind | Utterances |\n|---|---|---|\n")
	for _, def := range model.AllEvents() {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", def.QualifiedName(), def.Kind, escapeCell(strings.Join(def.Utterances, "; ")))
	}
	sb.WriteString("\n## States\n")

	for _, st := range model.States {
		fmt.Fprintf(&sb, "\n### %s\n\n", st.Name)
		if len(st.Body) > 0 {
			fmt.Fprintf(&sb, "On entry: %s\n\n", actionList(st.Body))
		}
		for _, t := range st.Transitions {
			line := fmt.Sprintf("- `%s` → **%s**", t.Describe(), t.Target.Name)
			if len(t.Actions) > 0 {
				line += ", then " + actionList(t.Actions)
			}
			sb.WriteString(line + "\n")
		}
		if len(st.Fallback) > 0 {
			fmt.Fprintf(&sb, "- otherwise: %s\n", actionList(st.Fallback))
		}
	}
	return sb.String()
}

func actionList(specs []domain.ActionSpec) string {
	names := make([]string, 0, len(specs))
	for _, a := range specs {
		name := "`" + a.Action + "`"
		if a.ReturnVar != "" {
			name += " as `" + a.ReturnVar + "`"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
