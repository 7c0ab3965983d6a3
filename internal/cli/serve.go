package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// RunServe serves the operations API of a model until ctx is done.
func RunServe(ctx context.Context, opts Options, addr string, out io.Writer) error {
	env, err := NewEnv(ctx, opts, out)
	if err != nil {
		return err
	}
	defer env.Close()

	if opts.Watch {
		go follow(ctx, env)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	printSystemMessage(out, "Serving %s on http://%s", env.Engine.Model().Name, ln.Addr())
	return serve(ctx, env, ln)
}

// serve runs the operations API on ln and stops it gracefully once ctx is
// done.
func serve(ctx context.Context, env *Env, ln net.Listener) error {
	srv := &http.Server{
		Handler:           env.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	env.Logger.Info("Shutting down operations API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Settings.ShutdownTimeout)
	defer cancel()
	// SSE subscribers only leave when their connection closes.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return srv.Close()
	}
	return nil
}

// follow reloads the engine whenever the model files change.
func follow(ctx context.Context, env *Env) {
	if err := env.Engine.Follow(ctx, env.Provider); err != nil && ctx.Err() == nil {
		env.Logger.Error("Model watch stopped", "err", err)
	}
}
