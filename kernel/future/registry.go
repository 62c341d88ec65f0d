package future

import "github.com/joshuapare/kcore/kernel/alloc"

// DefaultCapacity is the number of sleep futures that may be registered at once.
const DefaultCapacity = 10

// Registry is the ordered, fixed-capacity list of pending sleep futures.
// Every method must be called with interrupts masked.
type Registry struct {
	entries []Future
}

// NewRegistry creates a registry holding at most capacity futures.
func NewRegistry(capacity int) Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Registry{entries: make([]Future, 0, capacity)}
}

// Len returns the number of registered futures.
func (r *Registry) Len() int { return len(r.entries) }

// Cap returns the registry capacity.
func (r *Registry) Cap() int { return cap(r.entries) }

// Push appends f.
func (r *Registry) Push(f Future) error {
	if len(r.entries) == cap(r.entries) {
		return ErrRegistryFull
	}
	r.entries = append(r.entries, f)
	return nil
}

// First returns the earliest registered future.
func (r *Registry) First() (Future, bool) {
	if len(r.entries) == 0 {
		return Future{}, false
	}
	return r.entries[0], true
}

// Remove drops the future owning ctx, keeping the order of the rest.
func (r *Registry) Remove(ctx alloc.Ref) bool {
	for i, f := range r.entries {
		if f.ctx != ctx {
			continue
		}
		copy(r.entries[i:], r.entries[i+1:])
		r.entries[len(r.entries)-1] = Future{}
		r.entries = r.entries[:len(r.entries)-1]
		return true
	}
	return false
}
