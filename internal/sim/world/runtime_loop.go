package world

import (
	"context"
	"time"
)

const inlineRetry = time.Millisecond

// Run applies queued work one item at a time until ctx is cancelled or Stop
// is called. Queries are served between actions, so no caller ever observes
// a partially applied action. Run must be called at most once.
func (w *World) Run(ctx context.Context) error {
	defer w.exitOnce.Do(func() { close(w.exited) })
	w.loopMu.Lock()
	defer w.loopMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case q := <-w.queries:
			q.fn()
			close(q.done)
		case env := <-w.inbox:
			w.apply(env)
		}
		w.publishMetrics()
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Submit queues an agent action without blocking. It reports ErrQueueFull
// when the inbox is saturated.
func (w *World) Submit(agentID string, act Action) error {
	return w.enqueue(ActionEnvelope{AgentID: agentID, Act: act})
}

// SubmitSystem queues a system action such as DecayTick.
func (w *World) SubmitSystem(act Action) error {
	return w.enqueue(ActionEnvelope{Act: act, System: true})
}

func (w *World) enqueue(env ActionEnvelope) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	select {
	case w.inbox <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain applies everything already queued. It only does work when no loop
// is running and is meant for tests.
func (w *World) Drain() int {
	if !w.loopMu.TryLock() {
		return 0
	}
	defer w.loopMu.Unlock()
	return w.drainLocked()
}

// Settle waits for any inline query to release the state, then applies
// everything still queued. Call it only after Run has returned.
func (w *World) Settle() int {
	w.loopMu.Lock()
	defer w.loopMu.Unlock()
	return w.drainLocked()
}

func (w *World) drainLocked() int {
	n := 0
	for {
		select {
		case env := <-w.inbox:
			w.apply(env)
			n++
		default:
			w.publishMetrics()
			return n
		}
	}
}

// do runs fn with exclusive access to the state: inline when no loop is
// running, otherwise on the loop goroutine.
func (w *World) do(ctx context.Context, fn func()) error {
	for {
		if w.loopMu.TryLock() {
			func() {
				defer w.loopMu.Unlock()
				fn()
				w.publishMetrics()
			}()
			return nil
		}
		q := queryReq{fn: fn, done: make(chan struct{})}
		select {
		case w.queries <- q:
			<-q.done
			return nil
		case <-w.exited:
			// The loop returned after TryLock failed; run inline.
		case <-time.After(inlineRetry):
			// Another caller holds the state inline.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
