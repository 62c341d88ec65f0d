// Package kernel ties the heap, the tick clock and the future executor into
// the single runtime a kernel boots once.
//
// Boot returns errors. Every method on Runtime escalates errors to the
// platform's fatal call instead: the core has no recovery path once the heap
// or the executor has reported a failure.
package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/joshuapare/kcore/internal/logger"
	"github.com/joshuapare/kcore/kernel/alloc"
	"github.com/joshuapare/kcore/kernel/arena"
	"github.com/joshuapare/kcore/kernel/boot"
	"github.com/joshuapare/kcore/kernel/clock"
	"github.com/joshuapare/kcore/kernel/future"
	"github.com/joshuapare/kcore/kernel/platform"
)

var (
	// ErrBadConfig indicates a Config that fails Validate.
	ErrBadConfig = errors.New("kernel: bad config")

	// ErrBadAddress indicates an address outside the arena was released.
	ErrBadAddress = errors.New("kernel: address outside arena")
)

// Block is an allocation handed out by Runtime.Allocate.
type Block struct {
	Ref  alloc.Ref
	Addr uint64 // physical address of the payload
	Data []byte // payload, len is the requested size
}

// Runtime is the booted kernel core.
type Runtime struct {
	cfg   Config
	plat  platform.Platform
	mem   *arena.Memory
	heap  *alloc.Allocator
	clock *clock.Clock
	exec  *future.Executor
}

// Boot locates the arena following img in the memory map, backs it with host
// memory and brings up the heap, the clock and the executor. The tick and
// wake handlers are installed on p before Boot returns.
func Boot(cfg Config, p platform.Platform, entries []boot.Entry, img boot.Image) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a, err := boot.FindArena(entries, img)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	mem, err := arena.Map(a)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	heap := alloc.New(p)
	if err := heap.Init(a, mem.Bytes()); err != nil {
		return nil, errors.Join(fmt.Errorf("kernel: %w", err), mem.Close())
	}

	clk := clock.New(p, cfg.TickHz)
	r := &Runtime{
		cfg:   cfg,
		plat:  p,
		mem:   mem,
		heap:  heap,
		clock: clk,
		exec:  future.NewExecutor(p, heap, clk, cfg.RegistryCapacity),
	}
	p.Register(cfg.TimerVector, r.OnTick)
	p.Register(cfg.UARTVector, r.OnWakeEvent)

	logger.Info("kernel booted",
		"arena", a.String(),
		"tick_hz", cfg.TickHz,
		"registry", cfg.RegistryCapacity)
	return r, nil
}

// Start is Boot for the kernel entry point: any error is fatal.
func Start(cfg Config, p platform.Platform, entries []boot.Entry, img boot.Image) *Runtime {
	r, err := Boot(cfg, p, entries, img)
	if err != nil {
		p.Fatal(err.Error())
	}
	return r
}

// Close releases the arena backing store. The runtime is unusable afterwards.
func (r *Runtime) Close() error {
	return r.mem.Close()
}

func (r *Runtime) fatal(err error) {
	r.plat.Fatal(err.Error())
}

// Allocate reserves size bytes on the heap.
func (r *Runtime) Allocate(size uint) Block {
	if size > math.MaxUint32 {
		r.fatal(fmt.Errorf("%w: %d bytes", alloc.ErrNoSpace, size))
		return Block{}
	}
	ref, data, err := r.heap.Alloc(uint32(size))
	if err != nil {
		r.fatal(err)
		return Block{}
	}
	return Block{Ref: ref, Addr: r.mem.Addr(uint32(ref)), Data: data}
}

// Release returns the allocation whose payload starts at addr.
func (r *Runtime) Release(addr uint64) {
	off, ok := r.mem.Offset(addr)
	if !ok {
		r.fatal(fmt.Errorf("%w: 0x%X", ErrBadAddress, addr))
		return
	}
	if err := r.heap.Free(alloc.Ref(off)); err != nil {
		r.fatal(err)
	}
}

// CreateSleepFuture returns a future resolving seconds from now. A nil ready
// resolves once the target tick is reached.
func (r *Runtime) CreateSleepFuture(seconds uint32, ready future.SleepPredicate) future.Future {
	f, err := r.exec.NewSleep(seconds, ready)
	if err != nil {
		r.fatal(err)
	}
	return f
}

// CreateIOFuture returns a future resolving once ready reports true.
func (r *Runtime) CreateIOFuture(ready future.IOPredicate) future.Future {
	return future.NewIO(ready)
}

// Await halts the caller until f resolves.
func (r *Runtime) Await(f future.Future) {
	if err := r.exec.Await(f); err != nil {
		r.fatal(err)
	}
}

// Sleep halts the caller for seconds.
func (r *Runtime) Sleep(seconds uint32) {
	r.Await(r.CreateSleepFuture(seconds, nil))
}

// OnTick is the timer interrupt handler.
func (r *Runtime) OnTick() {
	r.exec.OnTick()
}

// OnWakeEvent is the device interrupt handler.
func (r *Runtime) OnWakeEvent() {
	r.exec.OnWakeEvent()
}

// Config returns the configuration the runtime booted with.
func (r *Runtime) Config() Config { return r.cfg }

// Arena returns the arena descriptor.
func (r *Runtime) Arena() boot.Arena { return r.mem.Arena() }

// Heap returns the allocator.
func (r *Runtime) Heap() *alloc.Allocator { return r.heap }

// Clock returns the tick clock.
func (r *Runtime) Clock() *clock.Clock { return r.clock }

// Executor returns the future executor.
func (r *Runtime) Executor() *future.Executor { return r.exec }
