// Package script provides actions written in JavaScript and executed by an
// embedded goja runtime.
//
// The source is the body of a function. It sees the bound parameters as the
// global object params and a log function, and its return value becomes the
// action result:
//
//	var total = 0;
//	for (var i = 0; i < params.items.length; i++) total += params.items[i].price;
//	return total;
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"github.com/aretw0/colloquy/internal/logging"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 2 * time.Second

const interruptedMessage = "script interrupted"

// Action is a compiled script. It is safe for concurrent use: each call runs
// in a fresh runtime.
type Action struct {
	name    string
	program *goja.Program
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Action.
type Option func(*Action)

// WithTimeout sets the execution time limit. Zero or negative disables it,
// leaving only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(a *Action) {
		a.timeout = d
	}
}

// WithLogger sets the logger backing the script's log function.
func WithLogger(l *slog.Logger) Option {
	return func(a *Action) {
		a.logger = l
	}
}

// New compiles src into an action called name.
func New(name, src string, opts ...Option) (*Action, error) {
	program, err := goja.Compile(name, "(function(){\n"+src+"\n})()", true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script %q: %w", name, err)
	}
	a := &Action{
		name:    name,
		program: program,
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

// Execute runs the script with params. If ctx is done (or the timeout
// elapses) the runtime is interrupted and the context error is returned.
func (a *Action) Execute(ctx context.Context, params map[string]any) (any, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if params == nil {
		params = map[string]any{}
	}
	if err := vm.Set("params", params); err != nil {
		return nil, err
	}
	if err := vm.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			args = append(args, arg.Export())
		}
		a.logger.Info("script log", "action", a.name, "args", args)
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}

	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// Also fires after run returns; the runtime is discarded by then.
		vm.Interrupt(interruptedMessage)
	}()

	v, err := run(vm, a.program)
	cancel()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, fmt.Errorf("script %q: %w", a.name, ctx.Err())
		}
		return nil, fmt.Errorf("script %q: %w", a.name, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func run(vm *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return vm.RunProgram(p)
}
