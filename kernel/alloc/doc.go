// Package alloc implements the kernel heap: a segment-list allocator that
// manages one contiguous arena through headers written into the arena itself.
//
// # Overview
//
// The arena is always tiled by segments. Each segment starts with an 8-byte
// header (see internal/format) followed by its usable bytes:
//
//	+--------+-----------------+--------+----------+--------+---------+
//	| hdr    | free bytes      | hdr    | payload  | hdr    | payload |
//	+--------+-----------------+--------+----------+--------+---------+
//	^ offset 0 (free list head)  ^ allocated        ^ allocated
//
// Free segments form a singly linked list threaded through their headers.
// The list is kept in ascending address order and no two consecutive entries
// are ever physically adjacent: adjacency is merged as soon as it appears.
//
// # Allocation
//
// Alloc walks the free list from the lowest address and takes the first
// segment that fits. The block is carved from the top of the donor segment,
// so the donor keeps its header and start address and only its size shrinks:
//
//	end    = donor + header + donor.size
//	header = alignDown(end - requested) - header
//
// The allocated segment spans everything from its header to the donor's old
// end, alignment padding included, so its recorded size is at least the
// requested size. Alignment is computed on physical addresses.
//
// # Release
//
// Free rewrites the allocated header in place as a free header, splices it
// into the list after the last node below it, then merges it with its
// successor and its predecessor when they touch.
//
// # Failure
//
// Errors are returned as sentinel values. The kernel runtime treats all of
// them as fatal: a heap that reported corruption cannot be trusted to repair
// itself.
//
// # Interrupt Safety
//
// Every exported method runs inside a guarded section on the Mask passed to
// New. Interrupt handlers must not call into the allocator: they already run
// masked and guarded sections do not nest.
package alloc
