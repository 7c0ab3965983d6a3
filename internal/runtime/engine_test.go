package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/colloquy/internal/runtime"
	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/index"
	"github.com/aretw0/colloquy/pkg/session"
)

var (
	greet = domain.NewIntent("Greet", "hello")
	order = domain.NewIntent("Order", "order")
)

func newIndex(t *testing.T, states ...*domain.State) *index.Index {
	t.Helper()
	model := &domain.Model{Name: "test", States: states}
	require.NoError(t, model.Validate())
	ix, err := index.New(model)
	require.NoError(t, err)
	return ix
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.NewStore().GetOrCreate(context.Background(), "s-"+t.Name())
	require.NoError(t, err)
	return sess
}

func event(def *domain.EventDefinition) *domain.RecognizedEvent {
	return domain.NewRecognizedEvent(def, def.Name)
}

func TestHandleEvent_GreetBindsReply(t *testing.T) {
	initState := domain.NewState(domain.InitState)
	greeting := domain.NewState("Greeting")
	initState.Transitions = []*domain.Transition{{
		On:      greet,
		Target:  greeting,
		Actions: []domain.ActionSpec{{Action: "hello", ReturnVar: "reply"}},
	}}

	reg := actions.NewRegistry()
	reg.RegisterFunc("hello", func(ctx context.Context, params map[string]any) (any, error) {
		return "Hi there!", nil
	})

	eng := runtime.NewEngine(newIndex(t, initState, greeting), reg)
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)

	assert.Equal(t, "Greeting", sess.CurrentState())
	reply, ok := sess.Get("reply")
	assert.True(t, ok)
	assert.Equal(t, "Hi there!", reply)

	assert.Equal(t, domain.MatchDirect, out.Match)
	assert.Equal(t, domain.InitState, out.From)
	assert.Equal(t, "Greeting", out.To)
	assert.True(t, out.Moved())
	assert.Equal(t, map[string]any{"reply": "Hi there!"}, out.Bindings)
}

func TestHandleEvent_ReturnVariablesFlowBetweenActions(t *testing.T) {
	initState := domain.NewState(domain.InitState)
	done := domain.NewState("Done")
	initState.Transitions = []*domain.Transition{{
		On:     order,
		Target: done,
		Actions: []domain.ActionSpec{
			{Action: "price", ReturnVar: "price"},
			{Action: "double", ReturnVar: "total", Params: map[string]domain.Param{"n": domain.FromContext("price")}},
		},
	}}
	done.Body = []domain.ActionSpec{{Action: "echo", ReturnVar: "confirmation", Params: map[string]domain.Param{
		"value": domain.FromContext("total"),
	}}}

	reg := actions.NewRegistry(actions.Echo())
	reg.RegisterFunc("price", func(context.Context, map[string]any) (any, error) { return 21, nil })
	reg.RegisterFunc("double", func(_ context.Context, p map[string]any) (any, error) { return p["n"].(int) * 2, nil })

	eng := runtime.NewEngine(newIndex(t, initState, done), reg)
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(order), sess)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"price": 21, "total": 42, "confirmation": 42}, out.Bindings)
	assert.Equal(t, []string{"price", "total", "confirmation"}, sess.Snapshot().ReturnVariables)
}

func TestHandleEvent_WildcardPreferredOverFallback(t *testing.T) {
	s := domain.NewState(domain.InitState)
	t1 := domain.NewState("T1")
	t2 := domain.NewState("T2")
	s.Transitions = []*domain.Transition{
		{On: order, Target: t1},
		{Wildcard: true, Target: t2},
	}
	s.Fallback = []domain.ActionSpec{{Action: "sorry"}}

	var apologized bool
	reg := actions.NewRegistry()
	reg.RegisterFunc("sorry", func(context.Context, map[string]any) (any, error) {
		apologized = true
		return nil, nil
	})

	eng := runtime.NewEngine(newIndex(t, s, t1, t2), reg)
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchWildcard, out.Match)
	assert.Equal(t, "T2", sess.CurrentState())
	assert.False(t, apologized)
}

func TestHandleEvent_RegularTransitionsBeforeWildcard(t *testing.T) {
	s := domain.NewState(domain.InitState)
	t1 := domain.NewState("T1")
	t2 := domain.NewState("T2")
	s.Transitions = []*domain.Transition{
		{Wildcard: true, Target: t2},
		{On: order, Target: t1},
	}

	eng := runtime.NewEngine(newIndex(t, s, t1, t2), actions.NewRegistry())
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(order), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchDirect, out.Match)
	assert.Equal(t, "T1", sess.CurrentState())
}

func TestHandleEvent_NoMatchStaysAndApologizes(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	s.Transitions = []*domain.Transition{{On: order, Target: next}}
	s.Fallback = []domain.ActionSpec{{Action: "echo", ReturnVar: "apology", Params: map[string]domain.Param{
		"value": domain.Literal("Sorry, I did not get that"),
	}}}

	eng := runtime.NewEngine(newIndex(t, s, next), actions.NewRegistry(actions.Echo()))
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchFallback, out.Match)
	assert.False(t, out.Moved())
	assert.Equal(t, domain.InitState, sess.CurrentState())
	assert.Equal(t, "Sorry, I did not get that", out.Bindings["apology"])
}

func TestHandleEvent_NoMatchWithoutAnyFallback(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	s.Transitions = []*domain.Transition{{On: order, Target: next}}

	eng := runtime.NewEngine(newIndex(t, s, next), actions.NewRegistry())
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchFallback, out.Match)
	assert.Equal(t, domain.InitState, sess.CurrentState())
}

func TestHandleEvent_DefaultFallbackBody(t *testing.T) {
	s := domain.NewState(domain.InitState)
	fb := domain.NewState(domain.FallbackState)
	fb.Body = []domain.ActionSpec{{Action: "echo", ReturnVar: "said", Params: map[string]domain.Param{
		"value": domain.Literal("default apology"),
	}}}
	s.Transitions = []*domain.Transition{{On: order, Target: fb}}

	eng := runtime.NewEngine(newIndex(t, s, fb), actions.NewRegistry(actions.Echo()))
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchFallback, out.Match)
	assert.Equal(t, "default apology", out.Bindings["said"])
	assert.Equal(t, domain.InitState, sess.CurrentState())

	// Inside Default_Fallback itself nothing runs.
	_, err = eng.HandleEvent(context.Background(), event(order), sess)
	require.NoError(t, err)
	require.Equal(t, domain.FallbackState, sess.CurrentState())

	out, err = eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchNone, out.Match)
	assert.Empty(t, out.Bindings)
}

func TestHandleEvent_GuardErrorIsNotAMatch(t *testing.T) {
	s := domain.NewState(domain.InitState)
	bad := domain.NewState("Bad")
	good := domain.NewState("Good")
	s.Transitions = []*domain.Transition{
		{On: greet, Guard: domain.Func{Name: "broken", Fn: func(domain.GuardInput) (bool, error) {
			return false, errors.New("boom")
		}}, Target: bad},
		{On: greet, Target: good},
	}

	eng := runtime.NewEngine(newIndex(t, s, bad, good), actions.NewRegistry())
	sess := newSession(t)

	_, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, "Good", sess.CurrentState())
}

func TestHandleEvent_ActionFailureKeepsState(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	s.Transitions = []*domain.Transition{{
		On:     order,
		Target: next,
		Actions: []domain.ActionSpec{
			{Action: "reserve", ReturnVar: "reservation"},
			{Action: "charge", ReturnVar: "receipt"},
			{Action: "notify"},
		},
	}}

	boom := errors.New("card declined")
	var notified bool
	reg := actions.NewRegistry()
	reg.RegisterFunc("reserve", func(context.Context, map[string]any) (any, error) { return "R-1", nil })
	reg.RegisterFunc("charge", func(context.Context, map[string]any) (any, error) { return nil, boom })
	reg.RegisterFunc("notify", func(context.Context, map[string]any) (any, error) {
		notified = true
		return nil, nil
	})

	eng := runtime.NewEngine(newIndex(t, s, next), reg)
	sess := newSession(t)

	out, err := eng.HandleEvent(context.Background(), event(order), sess)
	require.Error(t, err)

	var actErr *domain.ActionExecutionError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, domain.ActionFailure, actErr.Kind)
	assert.Equal(t, "charge", actErr.Action)
	assert.Equal(t, domain.InitState, actErr.State)
	assert.Equal(t, map[string]any{"reservation": "R-1"}, actErr.Bindings)
	assert.ErrorIs(t, err, boom)

	assert.False(t, notified)
	assert.Equal(t, domain.InitState, sess.CurrentState())
	assert.Equal(t, domain.InitState, out.To)

	// The session stays usable.
	v, _ := sess.Get("reservation")
	assert.Equal(t, "R-1", v)
}

func TestHandleEvent_BodyFailureKeepsState(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	next.Body = []domain.ActionSpec{{Action: "missing"}}
	s.Transitions = []*domain.Transition{{On: order, Target: next}}

	eng := runtime.NewEngine(newIndex(t, s, next), actions.NewRegistry())
	sess := newSession(t)

	_, err := eng.HandleEvent(context.Background(), event(order), sess)
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
	assert.Equal(t, domain.InitState, sess.CurrentState())
}

func TestHandleEvent_ActionTimeout(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	s.Transitions = []*domain.Transition{{On: order, Target: next, Actions: []domain.ActionSpec{{Action: "slow"}}}}

	release := make(chan struct{})
	defer close(release)
	reg := actions.NewRegistry()
	reg.RegisterFunc("slow", func(ctx context.Context, _ map[string]any) (any, error) {
		<-release // ignores ctx on purpose
		return nil, nil
	})

	eng := runtime.NewEngine(newIndex(t, s, next), reg, runtime.WithActionTimeout(20*time.Millisecond))
	sess := newSession(t)

	_, err := eng.HandleEvent(context.Background(), event(order), sess)
	var actErr *domain.ActionExecutionError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, domain.ActionTimeout, actErr.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.InitState, sess.CurrentState())
}

func TestHandleEvent_ActionPanic(t *testing.T) {
	s := domain.NewState(domain.InitState)
	next := domain.NewState("Next")
	s.Transitions = []*domain.Transition{{On: order, Target: next, Actions: []domain.ActionSpec{{Action: "panics"}}}}

	reg := actions.NewRegistry()
	reg.RegisterFunc("panics", func(context.Context, map[string]any) (any, error) { panic("oops") })

	eng := runtime.NewEngine(newIndex(t, s, next), reg)
	_, err := eng.HandleEvent(context.Background(), event(order), newSession(t))

	var actErr *domain.ActionExecutionError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, domain.ActionFailure, actErr.Kind)
	assert.ErrorContains(t, err, "oops")
}

func TestHandleEvent_NullArguments(t *testing.T) {
	s := domain.NewState(domain.InitState)
	eng := runtime.NewEngine(newIndex(t, s), actions.NewRegistry())

	var nullErr *domain.NullReferenceError
	_, err := eng.HandleEvent(context.Background(), nil, newSession(t))
	require.ErrorAs(t, err, &nullErr)
	assert.Equal(t, "event", nullErr.Arg)

	_, err = eng.HandleEvent(context.Background(), event(greet), nil)
	require.ErrorAs(t, err, &nullErr)
	assert.Equal(t, "session", nullErr.Arg)
}

func TestHandleEvent_UnknownCurrentStateRestartsAtInit(t *testing.T) {
	initState := domain.NewState(domain.InitState)
	greeting := domain.NewState("Greeting")
	initState.Transitions = []*domain.Transition{{On: greet, Target: greeting}}
	eng := runtime.NewEngine(newIndex(t, initState, greeting), actions.NewRegistry())

	store := session.NewStore(session.WithInitialState("Gone"))
	sess, err := store.GetOrCreate(context.Background(), "lost")
	require.NoError(t, err)

	out, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Equal(t, "Gone", out.ResetFrom)
	assert.Equal(t, domain.InitState, out.From)
	assert.Equal(t, "Greeting", out.To)
	assert.Equal(t, "Greeting", sess.CurrentState())

	out, err = eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	assert.Empty(t, out.ResetFrom)
}

func TestHooks(t *testing.T) {
	initState := domain.NewState(domain.InitState)
	greeting := domain.NewState("Greeting")
	greeting.Body = []domain.ActionSpec{{Action: "echo", Params: map[string]domain.Param{"value": domain.Literal("hi")}}}
	initState.Transitions = []*domain.Transition{{On: greet, Target: greeting}}

	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		trace = append(trace, s)
	}
	hooks := domain.LifecycleHooks{
		OnStateLeave:   func(_ context.Context, e *domain.StateEvent) { record("leave:" + e.State) },
		OnStateEnter:   func(_ context.Context, e *domain.StateEvent) { record("enter:" + e.State) },
		OnActionCall:   func(_ context.Context, e *domain.ActionEvent) { record("call:" + e.Action) },
		OnActionReturn: func(_ context.Context, e *domain.ActionEvent) { record("return:" + e.Action) },
		OnFallback:     func(_ context.Context, e *domain.StateEvent) { record("fallback:" + e.State) },
	}

	eng := runtime.NewEngine(newIndex(t, initState, greeting), actions.NewRegistry(actions.Echo()), runtime.WithLifecycleHooks(hooks))
	sess := newSession(t)

	_, err := eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)
	_, err = eng.HandleEvent(context.Background(), event(greet), sess)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"call:echo", "return:echo", "leave:Init", "enter:Greeting",
		"fallback:Greeting",
	}, trace)
}
