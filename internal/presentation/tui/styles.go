package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Styles colors the chat output for the terminal behind a writer. Writers
// that are not terminals get plain text.
type Styles struct {
	out *termenv.Output
}

// NewStyles detects the color profile of w.
func NewStyles(w io.Writer) *Styles {
	return &Styles{out: termenv.NewOutput(w)}
}

// Prompt styles the input prompt.
func (s *Styles) Prompt(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#a78bfa")).Bold().String()
}

// Transition styles a "[From -> To]" trace line.
func (s *Styles) Transition(from, to string) string {
	return s.out.String(fmt.Sprintf("[%s -> %s]", from, to)).Faint().String()
}

// Fallback styles the trace of an unmatched event.
func (s *Styles) Fallback(state string) string {
	return s.out.String(fmt.Sprintf("[%s: fallback]", state)).Foreground(s.out.Color("#fbbf24")).String()
}

// Error styles an error message.
func (s *Styles) Error(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#f87171")).String()
}
