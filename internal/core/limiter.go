package core

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
)

type waiter struct {
	ready     chan struct{}
	granted   bool
	cancelled bool
}

// Limiter caps the number of concurrently served connections. Connections
// over the cap wait in FIFO order; once maxPending are waiting, further
// Acquire calls fail with a ServerBusy error.
type Limiter struct {
	mu         sync.Mutex
	max        int
	maxPending int
	active     int
	waiting    *queue.Queue
}

// NewLimiter returns a limiter admitting max workers. maxPending <= 0 means
// no waiting: excess connections are rejected at once.
func NewLimiter(max, maxPending int) *Limiter {
	if maxPending < 0 {
		maxPending = 0
	}
	return &Limiter{
		max:        max,
		maxPending: maxPending,
		waiting:    queue.New(),
	}
}

// Acquire blocks until a slot is free, ctx is done, or the wait queue is full.
// The returned release func must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	if l.active < l.max {
		l.active++
		l.mu.Unlock()
		return l.releaseOnce(), nil
	}
	if l.waiting.Length() >= l.maxPending {
		l.mu.Unlock()
		return nil, relayerrors.New(relayerrors.ServerBusy, "", nil)
	}
	w := &waiter{ready: make(chan struct{})}
	l.waiting.Add(w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return l.releaseOnce(), nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.granted {
			// The slot was handed over while we were giving up; pass it on.
			l.mu.Unlock()
			l.release()
			return nil, ctx.Err()
		}
		w.cancelled = true
		l.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Active reports the number of admitted connections.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Waiting reports the number of queued connections, including ones whose
// Acquire was cancelled but are not yet drained from the queue.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiting.Length()
}

func (l *Limiter) releaseOnce() func() {
	var once sync.Once
	return func() { once.Do(l.release) }
}

// release hands the slot to the oldest live waiter or frees it.
func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.waiting.Length() > 0 {
		w := l.waiting.Remove().(*waiter)
		if w.cancelled {
			continue
		}
		w.granted = true
		close(w.ready)
		return
	}
	l.active--
}
