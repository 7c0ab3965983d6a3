package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/colloquy/internal/presentation/graph"
	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/domain"
)

// inspect loads the model without starting an engine. The returned registry
// holds the built-in and script actions.
func inspect(ctx context.Context, opts Options) (*domain.Model, *actions.Registry, error) {
	logger := createLogger(opts.Debug, opts.LogLevel)
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Engine()
	if err != nil {
		return nil, nil, &domain.ConfigurationError{Key: "engine", Reason: "invalid settings", Err: err}
	}
	reg := actions.NewRegistry(actions.Builtins(io.Discard)...)
	model, _, err := loadModel(ctx, opts, reg, settings, logger)
	if err != nil {
		return nil, nil, err
	}
	return model, reg, nil
}

// RunValidate loads and validates the model. Actions no one provides are
// reported but are not an error: hosts register them at runtime.
func RunValidate(ctx context.Context, opts Options, out io.Writer) error {
	model, reg, err := inspect(ctx, opts)
	if err != nil {
		return err
	}
	printSystemMessage(out, "%s is valid: %d states, %d events, %d imports",
		model.Name, len(model.States), len(model.AllEvents()), len(model.Imports))
	if missing := reg.Missing(model); len(missing) > 0 {
		printSystemMessage(out, "actions to be provided by the host: %v", missing)
	}
	return nil
}

// RunGraph prints the model as a Mermaid flowchart.
func RunGraph(ctx context.Context, opts Options, out io.Writer) error {
	model, _, err := inspect(ctx, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, graph.GenerateMermaid(model, nil))
	return err
}

// RunSessions lists the sessions known to the configured session store.
func RunSessions(ctx context.Context, opts Options, out io.Writer) error {
	env, err := NewEnv(ctx, opts, io.Discard)
	if err != nil {
		return err
	}
	defer env.Close()

	ids, err := env.Engine.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		printSystemMessage(out, "no sessions")
		return nil
	}
	for _, id := range ids {
		snap, err := env.Engine.Snapshot(ctx, id)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", id, snap.State, snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
