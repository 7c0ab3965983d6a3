package index

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Index caches the facts the engine derives from a model. It is built once and
// is read-only afterwards, so it can be shared by every session.
type Index struct {
	model       *domain.Model
	init        *domain.State
	fallback    *domain.State
	states      map[string]*domain.State
	topLevel    []*domain.EventDefinition
	accessed    []*domain.EventDefinition
	intents     []*domain.EventDefinition
	fingerprint string
}

// New indexes model. The model is expected to be valid (see domain.Model.Validate);
// a model without Init simply yields no top-level intents.
func New(model *domain.Model) (*Index, error) {
	if model == nil {
		return nil, &domain.NullReferenceError{Arg: "model"}
	}

	ix := &Index{
		model:       model,
		states:      make(map[string]*domain.State, len(model.States)),
		topLevel:    TopLevelIntents(model),
		accessed:    ModelAccessedEvents(model),
		fingerprint: Fingerprint(model),
	}
	for _, s := range model.States {
		ix.states[s.Name] = s
	}
	ix.init = ix.states[domain.InitState]
	ix.fallback = ix.states[domain.FallbackState]

	set := newEventSet()
	for _, e := range model.AllEvents() {
		if e.IsIntent() {
			set.add(e)
		}
	}
	for _, e := range ix.accessed {
		if e.IsIntent() {
			set.add(e)
		}
	}
	ix.intents = set.items
	return ix, nil
}

// Model returns the indexed model.
func (ix *Index) Model() *domain.Model { return ix.model }

// Init returns the entry state, or nil.
func (ix *Index) Init() *domain.State { return ix.init }

// Fallback returns the Default_Fallback state, or nil when the model has none.
func (ix *Index) Fallback() *domain.State { return ix.fallback }

// State looks a state up by name.
func (ix *Index) State(name string) *domain.State { return ix.states[name] }

// TopLevelIntents returns the intents matchable from Init through wildcard hops.
func (ix *Index) TopLevelIntents() []*domain.EventDefinition { return ix.topLevel }

// AccessedEvents returns every event referenced by a transition of the model.
func (ix *Index) AccessedEvents() []*domain.EventDefinition { return ix.accessed }

// Intents returns every intent known to the model, for recognizer training.
func (ix *Index) Intents() []*domain.EventDefinition { return ix.intents }

// Fingerprint identifies the import set the index was built from.
func (ix *Index) Fingerprint() string { return ix.fingerprint }

// Stale reports whether model is not the indexed model or its import set
// changed, in which case the index (and anything trained from it) must be rebuilt.
func (ix *Index) Stale(model *domain.Model) bool {
	return model != ix.model || Fingerprint(model) != ix.fingerprint
}

// TopLevelIntents starts at Init and follows wildcard transitions, collecting
// the intents referenced by every transition of every visited state. Each state
// is visited at most once, so wildcard cycles terminate.
func TopLevelIntents(model *domain.Model) []*domain.EventDefinition {
	set := newEventSet()
	current := model.State(domain.InitState)
	visited := make(map[*domain.State]bool)

	for current != nil && !visited[current] {
		visited[current] = true
		for _, t := range current.Transitions {
			for _, e := range AccessedEvents(t) {
				if e.IsIntent() {
					set.add(e)
				}
			}
		}
		next := current.Wildcard()
		if next == nil {
			break
		}
		current = next.Target
	}
	return set.items
}

// AccessedEvents returns the events a transition depends on: its trigger and
// every event leaf of its guard. Duplicates are removed by identity.
func AccessedEvents(t *domain.Transition) []*domain.EventDefinition {
	set := newEventSet()
	collect(t, set)
	return set.items
}

// ModelAccessedEvents is AccessedEvents over every transition of the model.
func ModelAccessedEvents(model *domain.Model) []*domain.EventDefinition {
	set := newEventSet()
	for _, s := range model.States {
		for _, t := range s.Transitions {
			collect(t, set)
		}
	}
	return set.items
}

func collect(t *domain.Transition, set *eventSet) {
	if t == nil {
		return
	}
	if t.On != nil {
		set.add(t.On)
	}
	domain.Walk(t.Guard, func(g domain.Guard) bool {
		if e, ok := g.(domain.EventIs); ok && e.Event != nil {
			set.add(e.Event)
		}
		return true
	})
}

// Fingerprint hashes the model's import set (path, alias and digest).
func Fingerprint(model *domain.Model) string {
	if model == nil {
		return ""
	}
	keys := make([]string, 0, len(model.Imports))
	for _, imp := range model.Imports {
		keys = append(keys, imp.Path+"|"+imp.Alias+"|"+imp.Digest)
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

// eventSet is an insertion-ordered identity set.
type eventSet struct {
	seen  map[*domain.EventDefinition]bool
	items []*domain.EventDefinition
}

func newEventSet() *eventSet {
	return &eventSet{seen: make(map[*domain.EventDefinition]bool)}
}

func (s *eventSet) add(e *domain.EventDefinition) {
	if s.seen[e] {
		return
	}
	s.seen[e] = true
	s.items = append(s.items, e)
}
