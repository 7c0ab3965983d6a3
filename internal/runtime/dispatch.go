package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/index"
	"github.com/aretw0/colloquy/pkg/session"
)

// turn evaluates one event inside the session's unit of work.
func (e *Engine) turn(ctx context.Context, event *domain.RecognizedEvent, sess *session.Session) (*domain.Outcome, error) {
	ix := e.index.Load()
	if ix == nil {
		return nil, &domain.NullReferenceError{Arg: "index"}
	}
	var out *domain.Outcome

	err := sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		from := tx.CurrentState()
		out = &domain.Outcome{
			SessionID: sess.ID(),
			Event:     event,
			From:      from,
			To:        from,
		}

		state := ix.State(from)
		if state == nil {
			// The state was dropped by a model reload.
			e.logger.WarnContext(ctx, "Session state no longer declared by the model, restarting at Init",
				"session_id", sess.ID(),
				"state", from,
			)
			state = ix.Init()
			if state == nil {
				return &domain.IllegalStateError{
					Op:  "dispatch",
					Err: fmt.Errorf("session %q is in state %q and the model has no %s state", sess.ID(), from, domain.InitState),
				}
			}
			tx.SetState(state.Name)
			out.ResetFrom = from
			from = state.Name
			out.From, out.To = from, from
		}

		t, match := e.selectTransition(state, domain.GuardInput{Event: event, Context: tx.Context()}, sess.ID())
		if t == nil {
			err := e.fallback(ctx, tx, ix, state, event, out)
			out.Bindings = tx.Bindings()
			return err
		}
		out.Match = match
		out.Transition = t

		if err := e.runActions(ctx, tx, from, t.Actions, event); err != nil {
			out.Bindings = tx.Bindings()
			return err
		}
		if err := e.runActions(ctx, tx, from, t.Target.Body, event); err != nil {
			out.Bindings = tx.Bindings()
			return err
		}

		e.emitStateLeave(ctx, sess.ID(), from, event)
		tx.SetState(t.Target.Name)
		out.To = t.Target.Name
		out.Bindings = tx.Bindings()
		e.emitStateEnter(ctx, sess.ID(), t.Target.Name, event)

		e.logger.DebugContext(ctx, "Transition taken",
			"session_id", sess.ID(),
			"event", event.Name(),
			"from", from,
			"to", out.To,
			"match", match,
		)
		return nil
	})
	return out, err
}

// selectTransition returns the first regular transition of state matching
// in, else its wildcard if that matches. Guard failures count as no match.
func (e *Engine) selectTransition(state *domain.State, in domain.GuardInput, sessionID string) (*domain.Transition, domain.MatchKind) {
	var wildcard *domain.Transition
	for _, t := range state.Transitions {
		if t.Wildcard {
			if wildcard == nil {
				wildcard = t
			}
			continue
		}
		if e.matches(t, in, state, sessionID) {
			return t, domain.MatchDirect
		}
	}
	if wildcard != nil && e.matches(wildcard, in, state, sessionID) {
		return wildcard, domain.MatchWildcard
	}
	return nil, ""
}

func (e *Engine) matches(t *domain.Transition, in domain.GuardInput, state *domain.State, sessionID string) bool {
	ok, err := t.Matches(in)
	if err != nil {
		e.logger.Warn("Guard evaluation failed, treating transition as not matched",
			"session_id", sessionID,
			"state", state.Name,
			"transition", t.Describe(),
			"err", err,
		)
		return false
	}
	return ok
}

// fallback runs when no transition matches. The state's own fallback actions
// take precedence over the body of Default_Fallback. Nothing runs when the
// session already sits in Default_Fallback.
func (e *Engine) fallback(ctx context.Context, tx *session.Tx, ix *index.Index, state *domain.State, event *domain.RecognizedEvent, out *domain.Outcome) error {
	if state.IsFallback() {
		out.Match = domain.MatchNone
		return nil
	}
	out.Match = domain.MatchFallback

	specs := state.Fallback
	if len(specs) == 0 {
		if fb := ix.Fallback(); fb != nil {
			specs = fb.Body
		}
	}

	if e.hooks.OnFallback != nil {
		e.hooks.OnFallback(ctx, &domain.StateEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFallback, SessionID: tx.ID()},
			State:     state.Name,
			Event:     event.Name(),
		})
	}
	e.logger.DebugContext(ctx, "No transition matched, running fallback",
		"session_id", tx.ID(),
		"state", state.Name,
		"event", event.Name(),
		"actions", len(specs),
	)
	return e.runActions(ctx, tx, state.Name, specs, event)
}

// runActions executes specs in order. Parameters are bound right before each
// call so that a return variable is visible to the actions that follow it.
func (e *Engine) runActions(ctx context.Context, tx *session.Tx, stateName string, specs []domain.ActionSpec, event *domain.RecognizedEvent) error {
	for _, spec := range specs {
		params := spec.Bind(domain.GuardInput{Event: event, Context: tx.Context()})
		result, err := e.execute(ctx, tx.ID(), stateName, spec.Action, params)
		if err != nil {
			kind := domain.ActionFailure
			if errors.Is(err, context.DeadlineExceeded) {
				kind = domain.ActionTimeout
			}
			return &domain.ActionExecutionError{
				Kind:     kind,
				Action:   spec.Action,
				State:    stateName,
				Bindings: tx.Bindings(),
				Err:      err,
			}
		}
		if spec.ReturnVar != "" {
			tx.Bind(spec.ReturnVar, result)
		}
	}
	return nil
}

type execResult struct {
	value any
	err   error
}

// execute runs one action under the action timeout. An action that ignores
// its context is abandoned when the deadline passes.
func (e *Engine) execute(ctx context.Context, sessionID, stateName, name string, params map[string]any) (any, error) {
	if e.actions == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, name)
	}
	action, ok := e.actions.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, name)
	}

	if e.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.actionTimeout)
		defer cancel()
	}

	e.emitActionCall(ctx, sessionID, stateName, name, params)
	start := time.Now()

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()
		v, err := action.Execute(ctx, params)
		done <- execResult{value: v, err: err}
	}()

	var res execResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	e.emitActionReturn(ctx, sessionID, stateName, name, params, res, time.Since(start))
	if res.err != nil {
		e.logger.WarnContext(ctx, "Action failed",
			"session_id", sessionID,
			"state", stateName,
			"action", name,
			"err", res.err,
		)
	}
	return res.value, res.err
}
