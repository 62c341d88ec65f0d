package future

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/kcore/internal/buf"
	"github.com/joshuapare/kcore/internal/logger"
	"github.com/joshuapare/kcore/kernel/alloc"
	"github.com/joshuapare/kcore/kernel/clock"
	"github.com/joshuapare/kcore/kernel/platform"
)

// Heap is the allocator sleep contexts are taken from.
type Heap interface {
	Alloc(size uint32) (alloc.Ref, []byte, error)
	Free(ref alloc.Ref) error
}

// Executor runs Await and services the timer and device wake paths.
type Executor struct {
	cpu   platform.CPU
	heap  Heap
	clock *clock.Clock

	// registry is only touched with interrupts masked.
	registry Registry

	// wake is set by interrupt handlers and cleared by Await.
	wake atomic.Bool
}

// NewExecutor creates an executor with a registry of the given capacity.
func NewExecutor(cpu platform.CPU, heap Heap, clk *clock.Clock, capacity int) *Executor {
	return &Executor{
		cpu:      cpu,
		heap:     heap,
		clock:    clk,
		registry: NewRegistry(capacity),
	}
}

// NewSleep creates a sleep future resolving seconds from now. A nil ready
// uses DeadlineReached.
func (e *Executor) NewSleep(seconds uint32, ready SleepPredicate) (Future, error) {
	if ready == nil {
		ready = DeadlineReached
	}
	ref, slot, err := e.heap.Alloc(sleepContextSize)
	if err != nil {
		return Future{}, fmt.Errorf("future: sleep context: %w", err)
	}
	target := e.clock.Now() + e.clock.Ticks(seconds)
	buf.PutU32LE(slot, target)

	return Future{kind: KindSleep, ctx: ref, slot: slot, sleepReady: ready}, nil
}

// Await blocks until f resolves, then releases what f owns.
func (e *Executor) Await(f Future) error {
	if !f.valid() {
		return ErrInvalidFuture
	}

	if f.kind == KindSleep {
		var err error
		platform.Guard(e.cpu, func() {
			err = e.registry.Push(f)
		})
		if err != nil {
			return errors.Join(err, e.heap.Free(f.ctx))
		}
		target, _ := f.Target()
		logger.Debug("await sleep", "target", target, "ctx", fmt.Sprintf("0x%X", uint32(f.ctx)))
	}

	// Clear before polling: a wake landing after the poll must not be lost.
	for {
		e.wake.Store(false)
		if e.poll(f) {
			break
		}
		for !e.wake.Load() {
			e.cpu.Halt()
		}
	}

	return e.release(f)
}

// Sleep suspends the caller for seconds.
func (e *Executor) Sleep(seconds uint32) error {
	f, err := e.NewSleep(seconds, nil)
	if err != nil {
		return err
	}
	return e.Await(f)
}

func (e *Executor) poll(f Future) bool {
	switch f.kind {
	case KindSleep:
		target, _ := f.Target()
		return f.sleepReady(e.clock.Now(), target)
	case KindIOReady:
		return f.ioReady()
	default:
		return false
	}
}

func (e *Executor) release(f Future) error {
	switch f.kind {
	case KindSleep:
		platform.Guard(e.cpu, func() {
			e.registry.Remove(f.ctx)
		})
		if err := e.heap.Free(f.ctx); err != nil {
			return fmt.Errorf("future: release sleep context: %w", err)
		}
	case KindIOReady:
	}
	return nil
}

// OnTick is the timer interrupt handler. It advances the clock and wakes the
// executor once the first-registered sleep future's target is reached.
func (e *Executor) OnTick() {
	now := e.clock.Advance()
	first, ok := e.registry.First()
	if !ok {
		return
	}
	if target, _ := first.Target(); now >= target {
		e.wake.Store(true)
	}
}

// OnWakeEvent is the device interrupt handler. It wakes the executor
// unconditionally.
func (e *Executor) OnWakeEvent() {
	e.wake.Store(true)
}

// Pending returns the number of registered sleep futures.
func (e *Executor) Pending() int {
	var n int
	platform.Guard(e.cpu, func() {
		n = e.registry.Len()
	})
	return n
}

// Woken reports the wake flag.
func (e *Executor) Woken() bool {
	return e.wake.Load()
}
