package future

import (
	"fmt"

	"github.com/joshuapare/kcore/internal/buf"
	"github.com/joshuapare/kcore/kernel/alloc"
)

// Kind tags the Future variant.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSleep
	KindIOReady
)

func (k Kind) String() string {
	switch k {
	case KindSleep:
		return "sleep"
	case KindIOReady:
		return "io-ready"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// sleepContextSize is the heap footprint of a sleep context: the target tick.
const sleepContextSize = 4

// SleepPredicate decides whether a sleep future is done given the current
// tick and the future's target tick.
type SleepPredicate func(now, target uint32) bool

// DeadlineReached is the default sleep predicate.
func DeadlineReached(now, target uint32) bool {
	return now >= target
}

// IOPredicate polls device state.
type IOPredicate func() bool

// Future is a pending condition. Construct one with Executor.NewSleep or
// NewIO; Await consumes it.
type Future struct {
	kind Kind

	// Sleep
	ctx        alloc.Ref
	slot       []byte
	sleepReady SleepPredicate

	// IOReady
	ioReady IOPredicate
}

// NewIO creates an IOReady future polling ready.
func NewIO(ready IOPredicate) Future {
	return Future{kind: KindIOReady, ioReady: ready}
}

// Kind returns the variant tag.
func (f Future) Kind() Kind {
	return f.kind
}

// Target returns the target tick of a sleep future.
func (f Future) Target() (uint32, bool) {
	if f.kind != KindSleep {
		return 0, false
	}
	return buf.U32LE(f.slot), true
}

// Context returns the heap reference owned by a sleep future.
func (f Future) Context() (alloc.Ref, bool) {
	if f.kind != KindSleep {
		return 0, false
	}
	return f.ctx, true
}

func (f Future) valid() bool {
	switch f.kind {
	case KindSleep:
		return f.sleepReady != nil && len(f.slot) == sleepContextSize
	case KindIOReady:
		return f.ioReady != nil
	default:
		return false
	}
}
