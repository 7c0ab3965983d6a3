package colloquy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Runner drives a conversation with the engine over line-oriented IO.
// This allows for easy testing and integration with different frontends.
type Runner struct {
	Input  io.Reader
	Output io.Writer

	// Headless suppresses the prompt and the state trace.
	Headless bool

	// Prompt is printed before each line is read. Defaults to "> ".
	Prompt string

	// Trace is called after every turn with the session diff. It defaults to
	// printing the new state, if any.
	Trace func(w io.Writer, out *domain.Outcome, diff *domain.SnapshotDiff)

	// ExitWords end the conversation. Defaults to "/quit" and "/exit".
	ExitWords []string

	// MaxInputSize rejects longer lines. Defaults to DefaultMaxInputSize;
	// negative disables the limit.
	MaxInputSize int
}

// NewRunner creates a Runner over the given IO.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out, Prompt: "> "}
}

// Run reads one line per turn and feeds it to the engine until the input is
// exhausted, an exit word is read or ctx is done. Recognition and action
// failures are reported to Output and the conversation goes on.
func (r *Runner) Run(ctx context.Context, engine *Engine, sessionID string) error {
	if r.Input == nil {
		return &domain.NullReferenceError{Arg: "input"}
	}
	if r.Output == nil {
		return &domain.NullReferenceError{Arg: "output"}
	}

	sess, err := engine.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return err
	}

	exits := r.ExitWords
	if len(exits) == 0 {
		exits = []string{"/quit", "/exit"}
	}
	trace := r.Trace
	if trace == nil {
		trace = printState
	}
	limit := r.MaxInputSize
	if limit == 0 {
		limit = DefaultMaxInputSize
	}

	scanner := bufio.NewScanner(r.Input)
	for {
		if !r.Headless {
			fmt.Fprint(r.Output, r.Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line, err := SanitizeInput(scanner.Text(), limit)
		if err != nil {
			fmt.Fprintf(r.Output, "error: %v\n", err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExit(line, exits) {
			return nil
		}

		before := sess.Snapshot()
		out, err := engine.HandleRawInput(ctx, line, sess)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var illegal *domain.IllegalStateError
			if errors.As(err, &illegal) {
				return err
			}
			fmt.Fprintf(r.Output, "error: %v\n", err)
			continue
		}
		if !r.Headless {
			trace(r.Output, out, domain.Diff(before, sess.Snapshot()))
		}
	}
}

func printState(w io.Writer, out *domain.Outcome, diff *domain.SnapshotDiff) {
	if diff != nil && diff.State != nil {
		fmt.Fprintf(w, "[%s -> %s]\n", out.From, *diff.State)
	}
}

func isExit(line string, exits []string) bool {
	for _, word := range exits {
		if strings.EqualFold(line, word) {
			return true
		}
	}
	return false
}
