package runtime

import (
	"context"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
)

func (e *Engine) emitStateEnter(ctx context.Context, sessionID, state string, event *domain.RecognizedEvent) {
	if e.hooks.OnStateEnter == nil {
		return
	}
	e.hooks.OnStateEnter(ctx, &domain.StateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStateEnter, SessionID: sessionID},
		State:     state,
		Event:     event.Name(),
	})
}

func (e *Engine) emitStateLeave(ctx context.Context, sessionID, state string, event *domain.RecognizedEvent) {
	if e.hooks.OnStateLeave == nil {
		return
	}
	e.hooks.OnStateLeave(ctx, &domain.StateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStateLeave, SessionID: sessionID},
		State:     state,
		Event:     event.Name(),
	})
}

func (e *Engine) emitActionCall(ctx context.Context, sessionID, state, action string, params map[string]any) {
	if e.hooks.OnActionCall == nil {
		return
	}
	e.hooks.OnActionCall(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventActionCall, SessionID: sessionID},
		State:     state,
		Action:    action,
		Input:     params,
	})
}

func (e *Engine) emitActionReturn(ctx context.Context, sessionID, state, action string, params map[string]any, res execResult, d time.Duration) {
	if e.hooks.OnActionReturn == nil {
		return
	}
	ev := &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventActionReturn, SessionID: sessionID},
		State:     state,
		Action:    action,
		Input:     params,
		Output:    res.value,
		IsError:   res.err != nil,
		Duration:  d,
	}
	if res.err != nil {
		ev.Output = res.err.Error()
	}
	e.hooks.OnActionReturn(ctx, ev)
}
