// Package boot turns the memory map handed over by the boot loader into the
// arena the kernel heap owns.
//
// The heap takes the usable region that starts where the kernel image is
// loaded, minus the bytes the image itself occupies:
//
//	entry.Base == image.Start
//	arena.Base  = image.End
//	arena.Size  = entry.Length - (image.End - image.Start)
package boot

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kcore/internal/format"
)

var (
	// ErrNoMemoryMap indicates the boot loader supplied no memory map entries.
	ErrNoMemoryMap = errors.New("boot: no memory map")

	// ErrArenaNotFound indicates no entry starts at the kernel image.
	ErrArenaNotFound = errors.New("boot: no memory map entry at kernel image start")

	// ErrArenaTooSmall indicates the region left after the image cannot hold a segment header.
	ErrArenaTooSmall = errors.New("boot: arena too small")

	// ErrBadImage indicates the kernel image bounds are inverted.
	ErrBadImage = errors.New("boot: kernel image end before start")

	// ErrMalformedMap indicates a multiboot memory map buffer could not be decoded.
	ErrMalformedMap = errors.New("boot: malformed memory map")
)

// MaxArenaSize is the largest arena the heap can address. Segment offsets are
// 32-bit and format.NilLink must never be a valid offset.
const MaxArenaSize = 1<<32 - format.Alignment

// EntryType is the multiboot memory region type.
type EntryType uint32

const (
	EntryAvailable       EntryType = 1
	EntryReserved        EntryType = 2
	EntryACPIReclaimable EntryType = 3
	EntryNVS             EntryType = 4
	EntryBadRAM          EntryType = 5
)

func (t EntryType) String() string {
	switch t {
	case EntryAvailable:
		return "available"
	case EntryReserved:
		return "reserved"
	case EntryACPIReclaimable:
		return "acpi-reclaimable"
	case EntryNVS:
		return "nvs"
	case EntryBadRAM:
		return "bad-ram"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Entry is one region of the boot memory map.
type Entry struct {
	Base   uint64
	Length uint64
	Type   EntryType
}

// Image is the physical extent of the loaded kernel image (the linker's
// KERNEL_START and KERNEL_END symbols).
type Image struct {
	Start uint64
	End   uint64
}

// Footprint is the number of bytes the image occupies.
func (i Image) Footprint() uint64 {
	return i.End - i.Start
}

// Arena is the single physical region owned by the heap.
type Arena struct {
	Base uint64 // physical address of the first arena byte
	Size uint64 // bytes from Base to the end of the region
}

// Usable is the size of the free segment that initially spans the arena:
// everything but its own header.
func (a Arena) Usable() uint64 {
	if a.Size < format.HeaderSize {
		return 0
	}
	return a.Size - format.HeaderSize
}

// End is the physical address one past the last arena byte.
func (a Arena) End() uint64 {
	return a.Base + a.Size
}

func (a Arena) String() string {
	return fmt.Sprintf("[0x%X, 0x%X) %d bytes", a.Base, a.End(), a.Size)
}

// FindArena locates the entry that begins at the kernel image and returns the
// arena that follows the image inside it. Arenas larger than MaxArenaSize are
// clamped.
func FindArena(entries []Entry, img Image) (Arena, error) {
	if len(entries) == 0 {
		return Arena{}, ErrNoMemoryMap
	}
	if img.End < img.Start {
		return Arena{}, fmt.Errorf("%w: start=0x%X end=0x%X", ErrBadImage, img.Start, img.End)
	}

	for _, e := range entries {
		if e.Base != img.Start {
			continue
		}
		if e.Length <= img.Footprint()+format.HeaderSize {
			return Arena{}, fmt.Errorf("%w: region %d bytes, image %d bytes",
				ErrArenaTooSmall, e.Length, img.Footprint())
		}
		size := e.Length - img.Footprint()
		if size > MaxArenaSize {
			size = MaxArenaSize
		}
		return Arena{Base: img.End, Size: size}, nil
	}
	return Arena{}, fmt.Errorf("%w: 0x%X", ErrArenaNotFound, img.Start)
}
