package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

// AdmissionMode selects how the capacity gate admits new conversations.
type AdmissionMode string

const (
	// AdmissionStrict reserves a slot atomically with the admission check.
	AdmissionStrict AdmissionMode = "strict"
	// AdmissionLiteral checks the counter and lets the worker increment it
	// later. Transient over-admission above the pool size is possible.
	AdmissionLiteral AdmissionMode = "literal"
)

// Gate bounds the number of concurrently active conversations.
//
// The acceptor calls Wait (or TryAdmit) before accepting, Abort if the
// accept then fails, and Admitted when it dispatches the worker. A worker
// calls Enter when it starts and Leave exactly once when it terminates.
type Gate interface {
	// TryAdmit reports whether one more conversation may start now.
	TryAdmit() bool
	// Wait blocks until TryAdmit succeeds or ctx is done.
	Wait(ctx context.Context) error
	Admitted()
	Enter()
	Leave()
	Abort()
	Active() int
	Peak() int
	Size() int
	Mode() AdmissionMode
}

// NewGate creates a gate of the given mode bounding size conversations.
// pollInterval only applies to AdmissionLiteral; zero means spin.
func NewGate(mode AdmissionMode, size int, pollInterval time.Duration) (Gate, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}

	switch mode {
	case AdmissionStrict, "":
		return newStrictGate(size), nil
	case AdmissionLiteral:
		return newLiteralGate(size, pollInterval), nil
	default:
		return nil, fmt.Errorf("unknown admission mode %q", mode)
	}
}

// strictGate pairs a weighted semaphore with the shared counter. A permit is
// taken by the admission check itself and held until Leave, so at most Size
// workers can ever be counted.
type strictGate struct {
	sem     *semaphore.Weighted
	size    int
	counter *Counter
}

func newStrictGate(size int) *strictGate {
	return &strictGate{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		counter: NewCounter(),
	}
}

// TryAdmit reserves a permit without blocking.
func (g *strictGate) TryAdmit() bool {
	return g.sem.TryAcquire(1)
}

// Wait blocks until a permit is reserved.
func (g *strictGate) Wait(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Admitted is a no-op: the permit already accounts for the conversation.
func (g *strictGate) Admitted() {}

func (g *strictGate) Enter() {
	g.counter.Increment()
}

// Leave uncounts a finished conversation and returns its permit.
func (g *strictGate) Leave() {
	g.counter.Decrement()
	g.sem.Release(1)
}

// Abort returns a permit whose accept failed.
func (g *strictGate) Abort() {
	g.sem.Release(1)
}

func (g *strictGate) Active() int         { return g.counter.Read() }
func (g *strictGate) Peak() int           { return g.counter.Peak() }
func (g *strictGate) Size() int           { return g.size }
func (g *strictGate) Mode() AdmissionMode { return AdmissionStrict }

// literalGate compares the counter against the pool size and reserves
// nothing. The acceptor increments in Admitted when it spawns the worker, so
// the check and the increment are separated by one Accept call.
type literalGate struct {
	size         int
	pollInterval time.Duration
	counter      *Counter
}

func newLiteralGate(size int, pollInterval time.Duration) *literalGate {
	return &literalGate{
		size:         size,
		pollInterval: pollInterval,
		counter:      NewCounter(),
	}
}

func (g *literalGate) TryAdmit() bool {
	return g.counter.Read() < g.size
}

// Wait polls TryAdmit until it succeeds. With a zero poll interval this
// keeps a CPU busy for as long as the pool is full.
func (g *literalGate) Wait(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if g.TryAdmit() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if g.pollInterval <= 0 {
			runtime.Gosched()
			continue
		}

		if timer == nil {
			timer = time.NewTimer(g.pollInterval)
		} else {
			timer.Reset(g.pollInterval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *literalGate) Admitted() { g.counter.Increment() }
func (g *literalGate) Enter()    {}
func (g *literalGate) Leave()    { g.counter.Decrement() }

// Abort is a no-op: nothing was reserved by TryAdmit.
func (g *literalGate) Abort() {}

func (g *literalGate) Active() int         { return g.counter.Read() }
func (g *literalGate) Peak() int           { return g.counter.Peak() }
func (g *literalGate) Size() int           { return g.size }
func (g *literalGate) Mode() AdmissionMode { return AdmissionLiteral }
