package format

import (
	"fmt"

	"github.com/joshuapare/kcore/internal/buf"
)

// Header is the decoded form of a segment header.
type Header struct {
	Size uint32
	Link uint32
}

// ReadHeader decodes the header stored at off.
func ReadHeader(arena []byte, off uint32) (Header, error) {
	b, ok := buf.Slice(arena, int(off), HeaderSize)
	if !ok {
		return Header{}, fmt.Errorf("%w: offset 0x%X", ErrTruncated, off)
	}
	return Header{
		Size: buf.U32LE(b[SizeOffset:]),
		Link: buf.U32LE(b[LinkOffset:]),
	}, nil
}

// PutHeader encodes h at off.
func PutHeader(arena []byte, off uint32, h Header) error {
	b, ok := buf.Slice(arena, int(off), HeaderSize)
	if !ok {
		return fmt.Errorf("%w: offset 0x%X", ErrTruncated, off)
	}
	buf.PutU32LE(b[SizeOffset:], h.Size)
	buf.PutU32LE(b[LinkOffset:], h.Link)
	return nil
}

// PutSize rewrites only the size field of the header at off.
func PutSize(arena []byte, off uint32, size uint32) error {
	b, ok := buf.Slice(arena, int(off)+SizeOffset, 4)
	if !ok {
		return fmt.Errorf("%w: offset 0x%X", ErrTruncated, off)
	}
	buf.PutU32LE(b, size)
	return nil
}

// PutLink rewrites only the link field of the header at off.
func PutLink(arena []byte, off uint32, link uint32) error {
	b, ok := buf.Slice(arena, int(off)+LinkOffset, 4)
	if !ok {
		return fmt.Errorf("%w: offset 0x%X", ErrTruncated, off)
	}
	buf.PutU32LE(b, link)
	return nil
}

// End returns the offset one past the span described by a header at off.
func End(off uint32, h Header) uint64 {
	return uint64(off) + HeaderSize + uint64(h.Size)
}
