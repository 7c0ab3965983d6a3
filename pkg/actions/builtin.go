package actions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"text/template"

	"github.com/aretw0/colloquy/pkg/ports"
)

// Say renders params["text"] as a Go template over the remaining params,
// writes the result as a line to w (when w is not nil) and returns it.
func Say(w io.Writer) ports.Action {
	return &sayAction{w: w}
}

type sayAction struct {
	mu sync.Mutex
	w  io.Writer
}

func (a *sayAction) Name() string { return "say" }

func (a *sayAction) Execute(ctx context.Context, params map[string]any) (any, error) {
	text, err := Render(params["text"], params)
	if err != nil {
		return nil, err
	}
	if a.w != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, err := fmt.Fprintln(a.w, text); err != nil {
			return nil, fmt.Errorf("say: %w", err)
		}
	}
	return text, nil
}

// Echo returns params["value"] unchanged. Combined with a return variable it
// copies a value into the session context.
func Echo() ports.Action {
	return Func("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["value"], nil
	})
}

// Builtins returns every built-in action, with say writing to w.
func Builtins(w io.Writer) []ports.Action {
	return []ports.Action{Say(w), Echo()}
}

// Render executes raw (a template string) with data.
func Render(raw any, data map[string]any) (string, error) {
	src, ok := raw.(string)
	if !ok {
		if raw == nil {
			return "", nil
		}
		src = fmt.Sprint(raw)
	}
	tmpl, err := template.New("text").Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering failed during interpolation: %w", err)
	}
	return buf.String(), nil
}
