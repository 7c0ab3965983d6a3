package domain

import (
	"fmt"
	"reflect"
)

// GuardInput is what a guard can observe: the recognized event and a read-only
// view of the session context.
type GuardInput struct {
	Event   *RecognizedEvent
	Context map[string]any
}

// Guard is a boolean expression over a GuardInput.
//
// Guards form a closed tree built once when the model is loaded. Event
// references are leaves holding a direct *EventDefinition handle, so the
// events a transition depends on can be collected with Walk.
type Guard interface {
	Eval(in GuardInput) (bool, error)
	operands() []Guard
}

// And is true when both operands are true. Right is not evaluated if Left is false.
type And struct{ Left, Right Guard }

// Or is true when either operand is true. Right is not evaluated if Left is true.
type Or struct{ Left, Right Guard }

// Not negates its operand.
type Not struct{ Operand Guard }

// EventIs matches when the recognized event was produced from Event.
type EventIs struct{ Event *EventDefinition }

// ContextEquals compares a session context variable with a literal.
type ContextEquals struct {
	Key   string
	Value any
}

// ContextExists is true when the session context holds Key.
type ContextExists struct{ Key string }

// ParamEquals compares a parameter of the recognized event with a literal.
type ParamEquals struct {
	Name  string
	Value any
}

// Const always evaluates to Value.
type Const struct{ Value bool }

// Func wraps a programmatic predicate. Name is used in logs and diagrams.
type Func struct {
	Name string
	Fn   func(GuardInput) (bool, error)
}

func (g And) Eval(in GuardInput) (bool, error) {
	if g.Left == nil || g.Right == nil {
		return false, &InvalidArgumentError{Arg: "and", Reason: "missing operand"}
	}
	ok, err := g.Left.Eval(in)
	if err != nil || !ok {
		return false, err
	}
	return g.Right.Eval(in)
}

func (g Or) Eval(in GuardInput) (bool, error) {
	if g.Left == nil || g.Right == nil {
		return false, &InvalidArgumentError{Arg: "or", Reason: "missing operand"}
	}
	ok, err := g.Left.Eval(in)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return g.Right.Eval(in)
}

func (g Not) Eval(in GuardInput) (bool, error) {
	if g.Operand == nil {
		return false, &InvalidArgumentError{Arg: "not", Reason: "missing operand"}
	}
	ok, err := g.Operand.Eval(in)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (g EventIs) Eval(in GuardInput) (bool, error) {
	if g.Event == nil {
		return false, &InvalidArgumentError{Arg: "event", Reason: "missing event reference"}
	}
	return in.Event != nil && in.Event.Definition == g.Event, nil
}

func (g ContextEquals) Eval(in GuardInput) (bool, error) {
	v, ok := in.Context[g.Key]
	if !ok {
		return false, nil
	}
	return valuesEqual(v, g.Value), nil
}

func (g ContextExists) Eval(in GuardInput) (bool, error) {
	_, ok := in.Context[g.Key]
	return ok, nil
}

func (g ParamEquals) Eval(in GuardInput) (bool, error) {
	v, ok := in.Event.Param(g.Name)
	if !ok {
		return false, nil
	}
	return valuesEqual(v, g.Value), nil
}

func (g Const) Eval(GuardInput) (bool, error) { return g.Value, nil }

func (g Func) Eval(in GuardInput) (bool, error) {
	if g.Fn == nil {
		return false, &InvalidArgumentError{Arg: g.Name, Reason: "nil guard function"}
	}
	return g.Fn(in)
}

func (g And) operands() []Guard         { return []Guard{g.Left, g.Right} }
func (g Or) operands() []Guard          { return []Guard{g.Left, g.Right} }
func (g Not) operands() []Guard         { return []Guard{g.Operand} }
func (EventIs) operands() []Guard       { return nil }
func (ContextEquals) operands() []Guard { return nil }
func (ContextExists) operands() []Guard { return nil }
func (ParamEquals) operands() []Guard   { return nil }
func (Const) operands() []Guard         { return nil }
func (Func) operands() []Guard          { return nil }

// Walk visits g and its operands depth-first, left to right.
// Returning false from fn skips the operands of the visited node.
func Walk(g Guard, fn func(Guard) bool) {
	if g == nil {
		return
	}
	if !fn(g) {
		return
	}
	for _, op := range g.operands() {
		Walk(op, fn)
	}
}

// DescribeGuard renders a guard as a compact human readable expression.
func DescribeGuard(g Guard) string {
	switch v := g.(type) {
	case nil:
		return "true"
	case And:
		return "(" + DescribeGuard(v.Left) + " && " + DescribeGuard(v.Right) + ")"
	case Or:
		return "(" + DescribeGuard(v.Left) + " || " + DescribeGuard(v.Right) + ")"
	case Not:
		return "!" + DescribeGuard(v.Operand)
	case EventIs:
		return "event == " + v.Event.QualifiedName()
	case ContextEquals:
		return fmt.Sprintf("context.%s == %v", v.Key, v.Value)
	case ContextExists:
		return "has(context." + v.Key + ")"
	case ParamEquals:
		return fmt.Sprintf("param.%s == %v", v.Name, v.Value)
	case Const:
		return fmt.Sprint(v.Value)
	case Func:
		return v.Name + "()"
	default:
		return fmt.Sprintf("%T", g)
	}
}

// valuesEqual compares values loosely so that numbers survive a JSON round trip
// (an int stored in a session comes back as float64).
func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	return okA && okB && fa == fb
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
