// Package regex implements a recognizer that matches input against patterns
// derived from intent utterances. It needs no external service and is the
// default backend.
package regex

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// Name identifies the backend.
const Name = "regex"

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type pattern struct {
	intent *domain.EventDefinition
	expr   *regexp.Regexp
}

// Recognizer matches input against anchored, case-sensitive patterns. Each
// training utterance becomes one pattern in which "{name}" placeholders
// capture the named parameter:
//
//	"my name is {name}" matches "my name is Ada" with name=Ada
//
// Patterns are tried in training order; the first match wins.
type Recognizer struct {
	mu       sync.RWMutex
	trained  []pattern
	extra    []pattern
	shutdown bool
}

// New creates an untrained recognizer.
func New() *Recognizer {
	return &Recognizer{}
}

// Name returns "regex".
func (r *Recognizer) Name() string { return Name }

// Train compiles the utterances of every intent, replacing earlier training.
// Patterns added with AddPattern are kept.
func (r *Recognizer) Train(ctx context.Context, intents []*domain.EventDefinition) error {
	var compiled []pattern
	for _, intent := range intents {
		if intent == nil {
			return &domain.NullReferenceError{Arg: "intent"}
		}
		for _, u := range intent.Utterances {
			expr, err := Compile(u)
			if err != nil {
				return fmt.Errorf("intent %s: %w", intent.QualifiedName(), err)
			}
			compiled = append(compiled, pattern{intent: intent, expr: expr})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.trained = compiled
	return nil
}

// AddPattern registers a raw regular expression for intent. The expression
// is anchored; named groups become event parameters.
func (r *Recognizer) AddPattern(intent *domain.EventDefinition, expr string) error {
	if intent == nil {
		return &domain.NullReferenceError{Arg: "intent"}
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return &domain.InvalidArgumentError{Arg: "expr", Reason: err.Error()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra = append(r.extra, pattern{intent: intent, expr: re})
	return nil
}

// Recognize returns the first matching intent, or the fallback intent with
// zero confidence.
func (r *Recognizer) Recognize(ctx context.Context, input string, session ports.SessionView) (*domain.RecognizedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shutdown {
		return nil, domain.ErrAlreadyShutdown
	}

	for _, set := range [][]pattern{r.trained, r.extra} {
		for _, p := range set {
			m := p.expr.FindStringSubmatch(input)
			if m == nil {
				continue
			}
			ev := domain.NewRecognizedEvent(p.intent, input)
			for i, name := range p.expr.SubexpNames() {
				if name != "" && i < len(m) {
					ev.Params[name] = m[i]
				}
			}
			return ev, nil
		}
	}

	ev := domain.NewRecognizedEvent(domain.DefaultFallbackIntent, input)
	ev.Confidence = 0
	return ev, nil
}

// Shutdown drops every pattern.
func (r *Recognizer) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trained, r.extra = nil, nil
	r.shutdown = true
	return nil
}

// Compile turns an utterance into an anchored pattern. Literal text is
// matched verbatim; "{name}" captures a non-empty value.
func Compile(utterance string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	seen := make(map[string]bool)
	for _, loc := range placeholder.FindAllStringSubmatchIndex(utterance, -1) {
		b.WriteString(regexp.QuoteMeta(utterance[last:loc[0]]))
		name := utterance[loc[2]:loc[3]]
		if seen[name] {
			return nil, &domain.InvalidArgumentError{
				Arg:    "utterance",
				Reason: fmt.Sprintf("placeholder {%s} used twice in %q", name, utterance),
			}
		}
		seen[name] = true
		b.WriteString("(?P<" + name + ">.+?)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(utterance[last:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}
