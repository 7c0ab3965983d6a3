package runtime

import (
	"context"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/session"
)

type job struct {
	ctx   context.Context
	event *domain.RecognizedEvent
	sess  *session.Session
	done  chan Result
}

// lane is the FIFO queue of one session. At most one goroutine drains a lane.
type lane struct {
	id      string
	queue   []*job
	running bool
}

// drain runs the jobs of l in order, taking a worker slot for each, and
// retires the lane once it is empty.
func (e *Engine) drain(l *lane) {
	for {
		e.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(e.lanes, l.id)
			e.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		e.mu.Unlock()

		j.done <- e.run(j)
		e.pending.Done()
	}
}

func (e *Engine) run(j *job) Result {
	select {
	case e.slots <- struct{}{}:
	case <-e.base.Done():
		return Result{Err: &domain.IllegalStateError{Op: "dispatch", Err: domain.ErrAlreadyShutdown}}
	case <-j.ctx.Done():
		return Result{Err: j.ctx.Err()}
	}
	defer func() { <-e.slots }()

	if err := j.ctx.Err(); err != nil {
		return Result{Err: err}
	}

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(e.base, cancel)
	defer stop()

	out, err := e.turn(ctx, j.event, j.sess)
	return Result{Outcome: out, Err: err}
}
