package boot

import (
	"fmt"

	"github.com/joshuapare/kcore/internal/buf"
)

// Multiboot memory map record layout. The leading size field counts the bytes
// that follow it, so the next record starts size+4 bytes later.
//
//	0x00  size    uint32
//	0x04  base    uint64
//	0x0C  length  uint64
//	0x14  type    uint32
const (
	mmapSizeField   = 4
	mmapBaseOffset  = 0x04
	mmapLenOffset   = 0x0C
	mmapTypeOffset  = 0x14
	mmapRecordSize  = 0x18
	mmapMinBodySize = mmapRecordSize - mmapSizeField
)

// ParseMultibootMap decodes the memory map buffer a multiboot loader places
// at mmap_addr (mmap_length bytes).
func ParseMultibootMap(b []byte) ([]Entry, error) {
	var entries []Entry
	for off := 0; off < len(b); {
		if _, err := buf.CheckRecordBounds(len(b), off, mmapSizeField); err != nil {
			return nil, fmt.Errorf("%w: record at %d: %w", ErrMalformedMap, off, err)
		}
		body := int(buf.U32LE(b[off:]))
		if body < mmapMinBodySize {
			return nil, fmt.Errorf("%w: record at %d has size %d", ErrMalformedMap, off, body)
		}
		end, err := buf.CheckRecordBounds(len(b), off, mmapSizeField+body)
		if err != nil {
			return nil, fmt.Errorf("%w: record at %d: %w", ErrMalformedMap, off, err)
		}
		entries = append(entries, Entry{
			Base:   buf.U64LE(b[off+mmapBaseOffset:]),
			Length: buf.U64LE(b[off+mmapLenOffset:]),
			Type:   EntryType(buf.U32LE(b[off+mmapTypeOffset:])),
		})
		off = end
	}
	if len(entries) == 0 {
		return nil, ErrNoMemoryMap
	}
	return entries, nil
}

// EncodeMultibootMap produces the buffer ParseMultibootMap reads.
func EncodeMultibootMap(entries []Entry) []byte {
	out := make([]byte, len(entries)*mmapRecordSize)
	for i, e := range entries {
		rec := out[i*mmapRecordSize:]
		buf.PutU32LE(rec, mmapMinBodySize)
		buf.PutU64LE(rec[mmapBaseOffset:], e.Base)
		buf.PutU64LE(rec[mmapLenOffset:], e.Length)
		buf.PutU32LE(rec[mmapTypeOffset:], uint32(e.Type))
	}
	return out
}

// StandardImageStart is where multiboot loaders place the kernel image (1 MiB).
const StandardImageStart = 0x100000

// PCMemoryMap returns the map a PC BIOS reports for a machine with memBytes
// of RAM: conventional memory, the EBDA and BIOS ROM holes, and one large
// region starting at 1 MiB.
func PCMemoryMap(memBytes uint64) []Entry {
	entries := []Entry{
		{Base: 0x0, Length: 0x9FC00, Type: EntryAvailable},
		{Base: 0x9FC00, Length: 0x400, Type: EntryReserved},
		{Base: 0xF0000, Length: 0x10000, Type: EntryReserved},
	}
	if memBytes > StandardImageStart {
		entries = append(entries, Entry{
			Base:   StandardImageStart,
			Length: memBytes - StandardImageStart,
			Type:   EntryAvailable,
		})
	}
	return entries
}
