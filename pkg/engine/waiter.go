package engine

import (
	"sync"
	"sync/atomic"
)

// stageResult is what a waiter resolves to: the stage's outputs on
// success, or the propagated failure.
type stageResult struct {
	outputs map[string]any
	err     error
}

type waiterKey struct {
	sagaID  string
	stepID  string
	attempt int
}

// waiter is a one-shot rendezvous for a dispatched stage step. The done
// flag is the per-attempt token: whichever of completion, failure,
// timeout, or cancellation consumes it first wins, and every later
// arrival is a no-op.
type waiter struct {
	ch   chan stageResult
	done atomic.Bool
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan stageResult, 1)}
}

// resolve delivers a result if the waiter is still open. Late results
// report false and are discarded by the caller.
func (w *waiter) resolve(res stageResult) bool {
	if !w.done.CompareAndSwap(false, true) {
		return false
	}
	w.ch <- res
	return true
}

// abandon consumes the token from the waiting side on timeout or
// cancellation. A false return means a result won the race and is
// already buffered in the channel.
func (w *waiter) abandon() bool {
	return w.done.CompareAndSwap(false, true)
}

// waiterTable indexes open waiters by (saga, step, attempt). Results for
// keys with no open waiter belong to superseded attempts and are
// dropped.
type waiterTable struct {
	mu      sync.Mutex
	waiters map[waiterKey]*waiter
}

func newWaiterTable() *waiterTable {
	return &waiterTable{waiters: make(map[waiterKey]*waiter)}
}

func (t *waiterTable) install(key waiterKey) *waiter {
	w := newWaiter()
	t.mu.Lock()
	t.waiters[key] = w
	t.mu.Unlock()
	return w
}

func (t *waiterTable) remove(key waiterKey) {
	t.mu.Lock()
	delete(t.waiters, key)
	t.mu.Unlock()
}

func (t *waiterTable) resolve(key waiterKey, res stageResult) bool {
	t.mu.Lock()
	w, ok := t.waiters[key]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return w.resolve(res)
}

func (t *waiterTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
