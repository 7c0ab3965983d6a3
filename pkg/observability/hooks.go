package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/colloquy/pkg/domain"
)

// LoggingHooks logs every lifecycle event. State changes are logged at Info,
// action calls at Debug and failed actions at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_enter",
				"session_id", e.SessionID,
				"state", e.State,
				"event", e.Event,
			)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_leave", "session_id", e.SessionID, "state", e.State)
		},
		OnFallback: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "fallback",
				"session_id", e.SessionID,
				"state", e.State,
				"event", e.Event,
			)
		},
		OnActionCall: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_call",
				"session_id", e.SessionID,
				"state", e.State,
				"action", e.Action,
			)
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			if e.IsError {
				logger.WarnContext(ctx, "action_return",
					"session_id", e.SessionID,
					"state", e.State,
					"action", e.Action,
					"err", e.Output,
					"duration", e.Duration,
				)
				return
			}
			logger.DebugContext(ctx, "action_return",
				"session_id", e.SessionID,
				"action", e.Action,
				"duration", e.Duration,
			)
		},
	}
}

// Combine returns hooks calling every non-nil hook of each set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnStateEnter = chain(out.OnStateEnter, h.OnStateEnter)
		out.OnStateLeave = chain(out.OnStateLeave, h.OnStateLeave)
		out.OnFallback = chain(out.OnFallback, h.OnFallback)
		out.OnActionCall = chain(out.OnActionCall, h.OnActionCall)
		out.OnActionReturn = chain(out.OnActionReturn, h.OnActionReturn)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
