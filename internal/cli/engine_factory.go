package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/pkg/actions"
	httpadapter "github.com/aretw0/colloquy/pkg/adapters/http"
	"github.com/aretw0/colloquy/pkg/adapters/yamlmodel"
	"github.com/aretw0/colloquy/pkg/config"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/observability"
)

// Options are the flags shared by the commands.
type Options struct {
	ModelPath  string
	ConfigPath string
	Debug      bool
	LogLevel   string

	// chat
	SessionID string
	Headless  bool
	Watch     bool
	Fresh     bool

	// OpsAddr serves the operations API next to the chat when set.
	OpsAddr string
}

// defaultConfigFile is read when no config path is given and it exists.
const defaultConfigFile = "colloquy.config.yaml"

// loadConfig reads the configuration file, if any, with the environment
// taking precedence.
func loadConfig(path string) (*config.Config, error) {
	file := config.New()
	switch {
	case path != "":
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		file = cfg
	default:
		if _, err := os.Stat(defaultConfigFile); err == nil {
			cfg, err := config.Load(defaultConfigFile)
			if err != nil {
				return nil, err
			}
			file = cfg
		}
	}
	return file.Merge(config.FromEnv()), nil
}

// loadModel reads the model named by opts. Script actions are registered
// into reg.
func loadModel(ctx context.Context, opts Options, reg *actions.Registry, s config.EngineSettings, logger *slog.Logger) (*domain.Model, *yamlmodel.Provider, error) {
	path, err := ResolveModelPath(opts.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	provider, err := yamlmodel.NewProvider(path,
		yamlmodel.WithRegistry(reg),
		yamlmodel.WithScriptTimeout(s.ScriptTimeout),
		yamlmodel.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	model, err := provider.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return model, provider, nil
}

// Env is a fully wired engine with everything the commands need around it.
type Env struct {
	Engine   *colloquy.Engine
	Provider *yamlmodel.Provider
	Registry *actions.Registry
	Config   *config.Config
	Settings config.EngineSettings
	Logger   *slog.Logger

	Metrics *prometheus.Registry
	Streams *httpadapter.StreamManager

	persistence *persistence
}

// NewEnv loads the model and configuration named by opts and starts an
// engine. Built-in actions write to out.
func NewEnv(ctx context.Context, opts Options, out io.Writer) (*Env, error) {
	logger := createLogger(opts.Debug, opts.LogLevel)

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Engine()
	if err != nil {
		return nil, &domain.ConfigurationError{Key: "engine", Reason: "invalid settings", Err: err}
	}

	env := &Env{
		Registry: actions.NewRegistry(actions.Builtins(out)...),
		Config:   cfg,
		Settings: settings,
		Logger:   logger,
		Metrics:  prometheus.NewRegistry(),
		Streams:  httpadapter.NewStreamManager(logger),
	}

	model, provider, err := loadModel(ctx, opts, env.Registry, settings, logger)
	if err != nil {
		return nil, err
	}
	env.Provider = provider

	metrics, err := observability.NewMetrics(env.Metrics)
	if err != nil {
		return nil, err
	}
	hooks := []domain.LifecycleHooks{metrics.Hooks(), env.Streams.Hooks()}
	if opts.Debug {
		hooks = append(hooks, observability.LoggingHooks(logger))
	}

	env.persistence, err = setupPersistence(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	env.Engine, err = colloquy.New(model,
		colloquy.WithConfig(cfg),
		colloquy.WithLogger(logger),
		colloquy.WithActions(env.Registry),
		colloquy.WithStateStore(env.persistence.store),
		colloquy.WithLocker(env.persistence.locker),
		colloquy.WithLifecycleHooks(observability.Combine(hooks...)),
		colloquy.WithRegisterer(env.Metrics),
	)
	if err != nil {
		_ = env.persistence.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return env, nil
}

// Handler returns the operations API of the engine.
func (e *Env) Handler() http.Handler {
	return httpadapter.NewHandler(e.Engine,
		httpadapter.WithStreams(e.Streams),
		httpadapter.WithGatherer(e.Metrics),
		httpadapter.WithLogger(e.Logger),
	)
}

// Close shuts the engine down within SHUTDOWN_TIMEOUT and closes the
// session store.
func (e *Env) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.Settings.ShutdownTimeout)
	defer cancel()

	var errs []error
	if !e.Engine.IsShutdown() {
		errs = append(errs, e.Engine.Shutdown(ctx))
	}
	errs = append(errs, e.persistence.Close())
	return errors.Join(errs...)
}
