// Package yamlmodel loads dialogue models written in YAML.
//
// A model file declares intents, events, scripts, commands and states; it can import
// library files whose definitions are referenced as "Alias.Name":
//
//	name: pizza
//	imports:
//	  - path: lib/greetings.yaml
//	    as: Greetings
//	intents:
//	  - name: Order
//	    utterances: ["I want a {size} pizza"]
//	states:
//	  - name: Init
//	    on:
//	      - intent: Greetings.Hello
//	        do:
//	          - say: "Hi! What would you like?"
//	      - intent: Order
//	        do:
//	          - do: echo
//	            with: {value: $param.size}
//	            save_as: size
//	        to: Ordered
//	  - name: Ordered
//	    body:
//	      - do: say
//	        with: {text: "One {{.size}} pizza coming", size: $ctx.size}
//
// Unqualified names resolve to the model's own definitions first, then to the
// single import defining them. A name defined by several imports is an error.
package yamlmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/actions/process"
	"github.com/aretw0/colloquy/pkg/actions/script"
	"github.com/aretw0/colloquy/pkg/domain"
)

const (
	ctxPrefix   = "$ctx."
	paramPrefix = "$param."
)

// Loader reads models from a file system.
type Loader struct {
	fsys          fs.FS
	registry      *actions.Registry
	scriptTimeout time.Duration
	commandDir    string
	logger        *slog.Logger
}

// Option configures the Loader.
type Option func(*Loader)

// WithRegistry registers the scripts of every loaded model in reg.
func WithRegistry(reg *actions.Registry) Option {
	return func(l *Loader) {
		l.registry = reg
	}
}

// WithScriptTimeout bounds the run time of script actions.
func WithScriptTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.scriptTimeout = d
	}
}

// WithCommandDir sets the working directory of command actions.
func WithCommandDir(dir string) Option {
	return func(l *Loader) {
		l.commandDir = dir
	}
}

// WithLogger sets the logger handed to script and command actions.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader reading from fsys.
func NewLoader(fsys fs.FS, opts ...Option) *Loader {
	l := &Loader{
		fsys:          fsys,
		scriptTimeout: script.DefaultTimeout,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and resolves the model at name. Import paths are relative to
// the directory of name.
func (l *Loader) Load(name string) (*domain.Model, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", name, err)
	}
	doc, err := decode(name, data)
	if err != nil {
		return nil, err
	}
	if doc.Library != "" {
		return nil, &domain.InvalidArgumentError{Arg: "name", Reason: name + " is a library, not a model"}
	}

	model := &domain.Model{Name: doc.Name}
	if model.Name == "" {
		model.Name = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}

	r := newResolver(model.Name)
	for _, imp := range doc.Imports {
		lib, err := l.library(path.Join(path.Dir(name), imp.Path), imp)
		if err != nil {
			return nil, err
		}
		if err := r.addImport(lib); err != nil {
			return nil, err
		}
		model.Imports = append(model.Imports, lib)
	}

	model.Events = declare(doc, "")
	for _, def := range model.Events {
		if err := r.addLocal(def); err != nil {
			return nil, err
		}
	}

	model.States = r.states(doc.States)
	if err := r.err(); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	if l.registry != nil {
		if err := l.registerScripts(doc.Scripts); err != nil {
			return nil, err
		}
		if err := l.registerCommands(doc.Commands); err != nil {
			return nil, err
		}
	}
	return model, nil
}

func (l *Loader) library(file string, imp importSpec) (domain.Import, error) {
	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return domain.Import{}, fmt.Errorf("failed to read library %s: %w", file, err)
	}
	doc, err := decode(file, data)
	if err != nil {
		return domain.Import{}, err
	}
	if doc.Library == "" {
		return domain.Import{}, &domain.InvalidArgumentError{Arg: "imports", Reason: file + " is not a library"}
	}
	if len(doc.States) > 0 || len(doc.Imports) > 0 {
		return domain.Import{}, &domain.InvalidArgumentError{Arg: "imports", Reason: file + ": libraries may only declare intents and events"}
	}

	alias := imp.As
	if alias == "" {
		alias = doc.Library
	}
	sum := sha256.Sum256(data)
	return domain.Import{
		Path:   imp.Path,
		Alias:  alias,
		Digest: hex.EncodeToString(sum[:]),
		Events: declare(doc, alias),
	}, nil
}

func (l *Loader) registerScripts(scripts map[string]string) error {
	var errs []error
	for name, src := range scripts {
		a, err := script.New(name, src,
			script.WithTimeout(l.scriptTimeout),
			script.WithLogger(l.logger),
		)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.registry.Register(a)
	}
	return errors.Join(errs...)
}

func (l *Loader) registerCommands(commands map[string]process.Command) error {
	var errs []error
	for name, cmd := range commands {
		a, err := process.New(name, cmd,
			process.WithDir(l.commandDir),
			process.WithLogger(l.logger),
		)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.registry.Register(a)
	}
	return errors.Join(errs...)
}

func decode(name string, data []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &doc, nil
}

func declare(doc *document, library string) []*domain.EventDefinition {
	var defs []*domain.EventDefinition
	for _, in := range doc.Intents {
		def := domain.NewIntent(in.Name, in.Utterances...)
		def.Library = library
		defs = append(defs, def)
	}
	for _, name := range doc.Events {
		def := domain.NewEvent(name)
		def.Library = library
		defs = append(defs, def)
	}
	return defs
}

// resolver turns names into definitions and collects every problem found.
type resolver struct {
	model    string
	local    map[string]*domain.EventDefinition
	imported map[string]*domain.EventDefinition
	byName   map[string][]*domain.EventDefinition
	aliases  map[string]bool
	declared map[string]*domain.State
	problems []string
}

func newResolver(model string) *resolver {
	return &resolver{
		model:    model,
		local:    make(map[string]*domain.EventDefinition),
		imported: make(map[string]*domain.EventDefinition),
		byName:   make(map[string][]*domain.EventDefinition),
		aliases:  make(map[string]bool),
		declared: make(map[string]*domain.State),
	}
}

func (r *resolver) addImport(imp domain.Import) error {
	if r.aliases[imp.Alias] {
		return &domain.InvalidArgumentError{Arg: "imports", Reason: fmt.Sprintf("alias %q imported twice", imp.Alias)}
	}
	r.aliases[imp.Alias] = true
	for _, def := range imp.Events {
		r.imported[def.QualifiedName()] = def
		r.byName[def.Name] = append(r.byName[def.Name], def)
	}
	return nil
}

func (r *resolver) addLocal(def *domain.EventDefinition) error {
	if _, dup := r.local[def.Name]; dup {
		return &domain.InvalidArgumentError{Arg: "intents", Reason: fmt.Sprintf("%q declared twice", def.Name)}
	}
	r.local[def.Name] = def
	return nil
}

func (r *resolver) event(name string) (*domain.EventDefinition, error) {
	if def, ok := r.local[name]; ok {
		return def, nil
	}
	if def, ok := r.imported[name]; ok {
		return def, nil
	}
	switch candidates := r.byName[name]; len(candidates) {
	case 0:
		return nil, fmt.Errorf("unknown event %q", name)
	case 1:
		return candidates[0], nil
	default:
		qualified := make([]string, len(candidates))
		for i, c := range candidates {
			qualified[i] = c.QualifiedName()
		}
		return nil, fmt.Errorf("ambiguous event %q (one of %s)", name, strings.Join(qualified, ", "))
	}
}

func (r *resolver) addf(format string, args ...any) {
	r.problems = append(r.problems, fmt.Sprintf(format, args...))
}

func (r *resolver) err() error {
	if len(r.problems) == 0 {
		return nil
	}
	return &domain.ModelError{Model: r.model, Problems: r.problems}
}

func (r *resolver) states(specs []stateSpec) []*domain.State {
	out := make([]*domain.State, 0, len(specs))
	kept := make([]stateSpec, 0, len(specs))
	for _, spec := range specs {
		if _, dup := r.declared[spec.Name]; dup {
			r.addf("duplicate state %q", spec.Name)
			continue
		}
		s := domain.NewState(spec.Name)
		r.declared[spec.Name] = s
		out = append(out, s)
		kept = append(kept, spec)
	}

	for i, spec := range kept {
		s := out[i]
		s.Body = r.actions(spec.Name, "body", spec.Body)
		s.Fallback = r.actions(spec.Name, "fallback", spec.Fallback)
		for i, ts := range spec.On {
			if t := r.transition(s, i, ts); t != nil {
				s.Transitions = append(s.Transitions, t)
			}
		}
	}
	return out
}

func (r *resolver) transition(from *domain.State, i int, spec transitionSpec) *domain.Transition {
	t := &domain.Transition{Wildcard: spec.Otherwise}
	where := fmt.Sprintf("state %q: transition #%d", from.Name, i)

	if spec.Intent != "" && spec.Event != "" {
		r.addf("%s: both intent and event set", where)
		return nil
	}
	if name := spec.Intent + spec.Event; name != "" {
		def, err := r.event(name)
		if err != nil {
			r.addf("%s: %v", where, err)
			return nil
		}
		if spec.Intent != "" && !def.IsIntent() {
			r.addf("%s: %s is an event, not an intent", where, def.QualifiedName())
			return nil
		}
		t.On = def
	}
	if spec.When != nil {
		g, err := r.guard(spec.When)
		if err != nil {
			r.addf("%s: %v", where, err)
			return nil
		}
		t.Guard = g
	}

	switch target := spec.To; {
	case target == "":
		t.Target = from
	case r.declared[target] != nil:
		t.Target = r.declared[target]
	default:
		r.addf("%s: unknown target state %q", where, target)
		return nil
	}

	t.Actions = r.actions(from.Name, fmt.Sprintf("transition #%d", i), spec.Do)
	return t
}

func (r *resolver) actions(state, where string, specs []actionSpec) []domain.ActionSpec {
	var out []domain.ActionSpec
	for i, spec := range specs {
		a := domain.ActionSpec{Action: spec.Do, ReturnVar: spec.SaveAs}
		switch {
		case spec.Do != "" && spec.Say != "":
			r.addf("state %q: %s action #%d: both do and say set", state, where, i)
			continue
		case spec.Say != "":
			a.Action = "say"
			a.Params = map[string]domain.Param{"text": domain.Literal(spec.Say)}
		}
		for k, v := range spec.With {
			if a.Params == nil {
				a.Params = make(map[string]domain.Param, len(spec.With))
			}
			a.Params[k] = param(v)
		}
		out = append(out, a)
	}
	return out
}

func param(v any) domain.Param {
	if s, ok := v.(string); ok {
		switch {
		case strings.HasPrefix(s, ctxPrefix):
			return domain.FromContext(strings.TrimPrefix(s, ctxPrefix))
		case strings.HasPrefix(s, paramPrefix):
			return domain.FromEvent(strings.TrimPrefix(s, paramPrefix))
		}
	}
	return domain.Literal(v)
}
