package alloc

import "errors"

var (
	// ErrNotInitialized indicates the allocator was used before Init.
	ErrNotInitialized = errors.New("alloc: arena not initialized")

	// ErrAlreadyInitialized indicates Init was called twice.
	ErrAlreadyInitialized = errors.New("alloc: arena already initialized")

	// ErrArenaMismatch indicates the backing bytes do not cover the arena.
	ErrArenaMismatch = errors.New("alloc: backing memory smaller than arena")

	// ErrNoSpace indicates that no free segment can hold the request.
	ErrNoSpace = errors.New("alloc: could not allocate memory")

	// ErrBadRef indicates a reference that does not denote a live allocation.
	ErrBadRef = errors.New("alloc: bad segment reference")

	// ErrNoSplice indicates the free list offered no place to insert a released segment.
	ErrNoSplice = errors.New("alloc: could not deallocate")

	// ErrCorrupt indicates the arena violates a structural invariant.
	ErrCorrupt = errors.New("alloc: heap corrupt")
)
