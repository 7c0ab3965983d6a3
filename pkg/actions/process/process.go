// Package process provides actions that run local commands.
//
// Only commands declared up front can run: a model names them, it never
// builds command lines. Bound parameters reach the process as environment
// variables (COLLOQUY_ARG_<NAME>), never as arguments, so user input cannot
// inject flags. Stdout is the result, decoded when it holds a JSON object or
// array.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
)

// EnvPrefix prefixes the environment variables carrying parameters.
const EnvPrefix = "COLLOQUY_ARG_"

// DefaultTimeout bounds a single execution.
const DefaultTimeout = 30 * time.Second

// Command declares an allowed command execution.
type Command struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// Action runs a Command.
type Action struct {
	name    string
	cmd     Command
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Action.
type Option func(*Action)

// WithDir sets the working directory of the process.
func WithDir(dir string) Option {
	return func(a *Action) {
		a.dir = dir
	}
}

// WithTimeout sets the execution time limit. Zero or negative disables it,
// leaving only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(a *Action) {
		a.timeout = d
	}
}

// WithLogger sets the logger receiving the stderr of failed runs.
func WithLogger(l *slog.Logger) Option {
	return func(a *Action) {
		a.logger = l
	}
}

// New creates an action called name running cmd.
func New(name string, cmd Command, opts ...Option) (*Action, error) {
	if cmd.Command == "" {
		return nil, &domain.InvalidArgumentError{Arg: "command", Reason: fmt.Sprintf("action %q has no command", name)}
	}
	a := &Action{
		name:    name,
		cmd:     cmd,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the action name.
func (a *Action) Name() string { return a.name }

// Execute runs the command with params in its environment.
func (a *Action) Execute(ctx context.Context, params map[string]any) (any, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, a.cmd.Command, a.cmd.Args...)
	cmd.Dir = a.dir
	// Children holding stdout open must not outlive a cancelled run.
	cmd.WaitDelay = time.Second
	cmd.Env = cmd.Environ()
	for k, v := range a.cmd.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range params {
		cmd.Env = append(cmd.Env, EnvPrefix+strings.ToUpper(k)+"="+envValue(v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command %q: %w", a.name, ctx.Err())
		}
		a.logger.Warn("command failed", "action", a.name, "err", err, "stderr", stderr.String())
		return nil, fmt.Errorf("command %q failed: %w: %s", a.name, err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

// envValue formats primitives as text and everything else as JSON.
func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}
