// Package factory assembles a recognition pipeline from configuration.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/config"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/index"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/aretw0/colloquy/pkg/recognition"
	"github.com/aretw0/colloquy/pkg/recognition/llm"
	"github.com/aretw0/colloquy/pkg/recognition/monitor"
	"github.com/aretw0/colloquy/pkg/recognition/processor"
	"github.com/aretw0/colloquy/pkg/recognition/regex"
)

// Host is what the factory needs from the engine being assembled.
type Host interface {
	// Index provides the intents the backend is trained with.
	Index() *index.Index
	// Registerer receives the recognition metrics. May return nil.
	Registerer() prometheus.Registerer
	// Logger may return nil.
	Logger() *slog.Logger
}

// Option tunes Select.
type Option func(*selector)

type selector struct {
	processors *processor.Registry
}

// WithProcessorRegistry resolves processor identifiers through reg instead
// of the built-in registry, so hosts can plug their own processors.
func WithProcessorRegistry(reg *processor.Registry) Option {
	return func(s *selector) {
		s.processors = reg
	}
}

// Select builds and trains the pipeline described by cfg:
//
//   - OPENAI_API_KEY with OPENAI_MODEL selects the OpenAI backend;
//   - ANTHROPIC_API_KEY with ANTHROPIC_MODEL selects the Anthropic backend;
//   - without either, the regex backend is used.
//
// Half a key pair, or both backends at once, is a *domain.ConfigurationError,
// as is an unknown processor identifier. Analytics (enabled unless
// ENABLE_RECOGNITION_ANALYTICS is false) attach a Prometheus monitor, and a
// SQLite monitor when RECOGNITION_ANALYTICS_DB is set.
func Select(host Host, cfg *config.Config, opts ...Option) (*recognition.Pipeline, error) {
	if isNil(host) {
		return nil, &domain.NullReferenceError{Arg: "host"}
	}
	if cfg == nil {
		return nil, &domain.NullReferenceError{Arg: "config"}
	}
	ix := host.Index()
	if ix == nil {
		return nil, &domain.NullReferenceError{Arg: "host index"}
	}

	s := &selector{processors: processor.NewRegistry()}
	for _, opt := range opts {
		opt(s)
	}

	logger := host.Logger()
	if logger == nil {
		logger = logging.NewNop()
	}

	settings, err := cfg.Recognition()
	if err != nil {
		return nil, err
	}

	backend, err := selectBackend(cfg, settings, logger)
	if err != nil {
		return nil, err
	}

	pre, err := s.processors.Pre(config.KeyPreProcessors, settings.PreProcessors)
	if err != nil {
		return nil, err
	}
	post, err := s.processors.Post(config.KeyPostProcessors, settings.PostProcessors)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []recognition.Option{
		recognition.WithPreProcessors(pre...),
		recognition.WithPostProcessors(post...),
		recognition.WithLogger(logger),
	}

	mon, err := selectMonitor(host, settings, logger)
	if err != nil {
		return nil, err
	}
	if mon != nil {
		pipelineOpts = append(pipelineOpts, recognition.WithMonitor(mon))
	}

	pipeline, err := recognition.NewPipeline(backend, pipelineOpts...)
	if err != nil {
		return nil, err
	}
	if err := pipeline.Train(context.Background(), ix.Intents()); err != nil {
		if mon != nil {
			_ = mon.Close()
		}
		return nil, err
	}

	logger.Info("Recognition pipeline ready",
		"backend", backend.Name(),
		"pre", pipeline.PreProcessors(),
		"post", pipeline.PostProcessors(),
		"analytics", mon != nil,
	)
	return pipeline, nil
}

func selectBackend(cfg *config.Config, s config.RecognitionSettings, logger *slog.Logger) (ports.Recognizer, error) {
	openAI, err := keyPair(cfg, config.KeyOpenAIAPIKey, config.KeyOpenAIModel)
	if err != nil {
		return nil, err
	}
	anthropic, err := keyPair(cfg, config.KeyAnthropicAPIKey, config.KeyAnthropicModel)
	if err != nil {
		return nil, err
	}

	switch {
	case openAI && anthropic:
		return nil, &domain.ConfigurationError{
			Key:    config.KeyOpenAIAPIKey,
			Reason: fmt.Sprintf("both OpenAI and Anthropic backends are configured (unset %s or %s)", config.KeyOpenAIAPIKey, config.KeyAnthropicAPIKey),
		}
	case openAI:
		c := llm.NewOpenAI(llm.ClientOptions{APIKey: s.OpenAIAPIKey, Model: s.OpenAIModel, BaseURL: s.OpenAIBaseURL})
		return llm.New(c, llm.WithTimeout(s.Timeout), llm.WithLogger(logger)), nil
	case anthropic:
		c := llm.NewAnthropic(llm.ClientOptions{APIKey: s.AnthropicAPIKey, Model: s.AnthropicModel, BaseURL: s.AnthropicBaseURL})
		return llm.New(c, llm.WithTimeout(s.Timeout), llm.WithLogger(logger)), nil
	}
	return regex.New(), nil
}

// keyPair reports whether both keys are set, and fails when only one is.
func keyPair(cfg *config.Config, apiKey, model string) (bool, error) {
	hasKey, hasModel := cfg.Has(apiKey), cfg.Has(model)
	switch {
	case hasKey && hasModel:
		return true, nil
	case hasKey:
		return false, &domain.ConfigurationError{Key: model, Reason: "required when " + apiKey + " is set"}
	case hasModel:
		return false, &domain.ConfigurationError{Key: apiKey, Reason: "required when " + model + " is set"}
	}
	return false, nil
}

func selectMonitor(host Host, s config.RecognitionSettings, logger *slog.Logger) (ports.Monitor, error) {
	if !s.AnalyticsEnabled {
		return nil, nil
	}
	prom, err := monitor.NewPrometheus(host.Registerer(), s.LowConfidence)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: config.KeyAnalyticsEnabled, Reason: "cannot register metrics", Err: err}
	}
	if s.AnalyticsDB == "" {
		return prom, nil
	}
	db, err := monitor.OpenSQLite(s.AnalyticsDB, monitor.WithSQLiteLogger(logger))
	if err != nil {
		return nil, &domain.ConfigurationError{Key: config.KeyAnalyticsDB, Reason: "cannot open analytics database", Err: err}
	}
	return monitor.Multi{prom, db}, nil
}

// isNil also catches a nil pointer stored in the Host interface.
func isNil(h Host) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
