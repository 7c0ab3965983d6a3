// Package llm implements a recognizer that asks a chat model to classify the
// user input among the trained intents.
//
// The model is instructed to answer with a single JSON object:
//
//	{"intent": "OrderPizza", "confidence": 0.92, "parameters": {"size": "large"}}
//
// Unknown intent names map to domain.DefaultFallbackIntent.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// ErrMalformedReply is returned when the model answer is not the expected JSON.
var ErrMalformedReply = errors.New("malformed model reply")

// Recognizer classifies input with a Completer.
type Recognizer struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.RWMutex
	intents map[string]*domain.EventDefinition
	prompt  string
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(r *Recognizer) {
		r.timeout = d
	}
}

// WithLogger sets the recognizer logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = l
	}
}

// New creates a recognizer over c.
func New(c Completer, opts ...Option) *Recognizer {
	r := &Recognizer{
		completer: c,
		logger:    logging.NewNop(),
		intents:   make(map[string]*domain.EventDefinition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns "llm/<completer>".
func (r *Recognizer) Name() string { return "llm/" + r.completer.Name() }

// Train builds the classification prompt from intents.
func (r *Recognizer) Train(ctx context.Context, intents []*domain.EventDefinition) error {
	byName := make(map[string]*domain.EventDefinition, len(intents))
	for _, intent := range intents {
		if intent == nil {
			return &domain.NullReferenceError{Arg: "intent"}
		}
		byName[intent.QualifiedName()] = intent
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = byName
	r.prompt = buildPrompt(intents)
	return nil
}

// Recognize asks the model to classify input.
func (r *Recognizer) Recognize(ctx context.Context, input string, session ports.SessionView) (*domain.RecognizedEvent, error) {
	r.mu.RLock()
	prompt, intents := r.prompt, r.intents
	r.mu.RUnlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply, err := r.completer.Complete(ctx, prompt, input)
	if err != nil {
		return nil, err
	}

	parsed, err := parseReply(reply)
	if err != nil {
		r.logger.Debug("Unparseable model reply", "reply", reply)
		return nil, err
	}

	def, ok := intents[parsed.Intent]
	if !ok {
		ev := domain.NewRecognizedEvent(domain.DefaultFallbackIntent, input)
		ev.Confidence = 0
		return ev, nil
	}

	ev := domain.NewRecognizedEvent(def, input)
	ev.Confidence = clamp(parsed.Confidence)
	for k, v := range parsed.Parameters {
		ev.Params[k] = v
	}
	return ev, nil
}

// Shutdown is a no-op; the SDK clients hold no resources.
func (r *Recognizer) Shutdown(ctx context.Context) error { return nil }

type reply struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
}

func parseReply(text string) (*reply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformedReply)
	}
	var out reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &out, nil
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func buildPrompt(intents []*domain.EventDefinition) string {
	sorted := append([]*domain.EventDefinition(nil), intents...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QualifiedName() < sorted[j].QualifiedName()
	})

	var b strings.Builder
	b.WriteString("You classify the user's message into exactly one of the intents below.\n")
	b.WriteString("Answer with a single JSON object and nothing else: ")
	b.WriteString(`{"intent": "<name>", "confidence": <0..1>, "parameters": {"<name>": "<value>"}}`)
	b.WriteString("\nIf no intent fits, use the intent name \"")
	b.WriteString(domain.DefaultFallbackIntent.Name)
	b.WriteString("\" with confidence 0.\n\nIntents:\n")
	for _, intent := range sorted {
		fmt.Fprintf(&b, "- %s", intent.QualifiedName())
		if len(intent.Parameters) > 0 {
			fmt.Fprintf(&b, " (parameters: %s)", strings.Join(intent.Parameters, ", "))
		}
		b.WriteString("\n")
		for _, u := range intent.Utterances {
			fmt.Fprintf(&b, "    e.g. %q\n", u)
		}
	}
	return b.String()
}
