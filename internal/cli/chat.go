package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/presentation/tui"
	"github.com/aretw0/colloquy/pkg/domain"
)

// RunChat holds a conversation with the model over in and out until the
// input ends, an exit word is typed or ctx is done.
func RunChat(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	env, err := NewEnv(ctx, opts, out)
	if err != nil {
		return err
	}
	defer env.Close()

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = "cli-" + uuid.NewString()[:8]
	}
	if opts.Fresh {
		if err := env.persistence.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to reset session %s: %w", sessionID, err)
		}
	}

	interactive := !opts.Headless && isTerminal(in)
	if interactive {
		tui.PrintBanner(out, colloquy.Version)
		printSystemMessage(out, "Model %s, session %s. Type /quit to leave.", env.Engine.Model().Name, sessionID)
	}

	if opts.Watch {
		go follow(ctx, env)
	}
	if opts.OpsAddr != "" {
		ln, err := net.Listen("tcp", opts.OpsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", opts.OpsAddr, err)
		}
		env.Logger.Info("Serving operations API", "addr", ln.Addr().String())
		go func() {
			if err := serve(ctx, env, ln); err != nil {
				env.Logger.Error("Operations API stopped", "err", err)
			}
		}()
	}

	styles := tui.NewStyles(out)
	runner := colloquy.NewRunner(in, out)
	runner.Headless = opts.Headless
	runner.MaxInputSize = env.Settings.MaxInputSize
	runner.Prompt = styles.Prompt("> ")
	runner.Trace = func(w io.Writer, o *domain.Outcome, diff *domain.SnapshotDiff) {
		switch {
		case diff != nil && diff.State != nil:
			fmt.Fprintln(w, styles.Transition(o.From, *diff.State))
		case o.Match == domain.MatchFallback:
			fmt.Fprintln(w, styles.Fallback(o.From))
		}
	}

	err = runner.Run(ctx, env.Engine, sessionID)
	if errors.Is(err, context.Canceled) {
		printSystemMessage(out, "Interrupted")
		return nil
	}
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
