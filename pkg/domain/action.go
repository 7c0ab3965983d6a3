package domain

// ParamSource tells where the value of an action parameter comes from.
type ParamSource int

const (
	ParamLiteral ParamSource = iota // Value is used as is
	ParamContext                    // Ref names a session context variable
	ParamEvent                      // Ref names a parameter of the recognized event
)

// Param is a single argument of an action invocation.
type Param struct {
	Source ParamSource
	Value  any
	Ref    string
}

// Literal binds a constant value.
func Literal(v any) Param { return Param{Source: ParamLiteral, Value: v} }

// FromContext binds the value of a session context variable at call time.
func FromContext(key string) Param { return Param{Source: ParamContext, Ref: key} }

// FromEvent binds a parameter extracted by the recognizer.
func FromEvent(name string) Param { return Param{Source: ParamEvent, Ref: name} }

// Resolve returns the value the parameter takes for a turn. Unresolvable
// references yield nil.
func (p Param) Resolve(in GuardInput) any {
	switch p.Source {
	case ParamContext:
		return in.Context[p.Ref]
	case ParamEvent:
		v, _ := in.Event.Param(p.Ref)
		return v
	default:
		return p.Value
	}
}

// ActionSpec references an action by name, the arguments it is called with and
// the context variable its result is stored in.
type ActionSpec struct {
	Action    string
	ReturnVar string
	Params    map[string]Param
}

// Bind resolves every parameter of the spec.
func (a ActionSpec) Bind(in GuardInput) map[string]any {
	args := make(map[string]any, len(a.Params))
	for name, p := range a.Params {
		args[name] = p.Resolve(in)
	}
	return args
}
