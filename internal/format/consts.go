// Package format describes the in-place segment header that prefixes every
// span of the kernel heap arena. Free and allocated segments share the same
// 8-byte layout so one can be rewritten as the other without moving bytes.
//
// Layout (little-endian):
//
//	0x00  size  uint32  usable bytes following the header
//	0x04  link  uint32  free: arena offset of the next free segment
//	                    allocated: reserved, always NilLink
package format

const (
	// HeaderSize is the size of a segment header in bytes.
	HeaderSize = 8

	// SizeOffset is the offset of the size field within a header.
	SizeOffset = 0x00

	// LinkOffset is the offset of the successor link within a header.
	LinkOffset = 0x04

	// Alignment is the boundary allocated payloads are aligned to, measured on
	// physical addresses.
	Alignment = 8

	// AlignmentMask is Alignment - 1.
	AlignmentMask = Alignment - 1

	// NilLink marks the end of the free list and the reserved slot of an
	// allocated segment.
	NilLink = 0xFFFFFFFF
)
