// Package heap is a free-list allocator over a fixed byte arena: round to
// 8, first-fit, split on slack, one-pass coalescing on free. Unlike
// pagealloc, freed memory is reusable. There is no source file for this
// component — the source only ships the bump page allocator — so this is
// built from spec.md's §4.2 description directly, in the byte-arena style
// pagealloc already establishes, with block headers encoded in the arena
// itself via encoding/binary rather than as a separate Go-heap-allocated
// linked list (see DESIGN.md).
package heap

import (
	"encoding/binary"

	"github.com/fru1t-labs/coreos/kernel"
)

// Ptr is a byte offset into a Heap's backing arena, as returned by
// Allocate. NullPtr models the "null" the source's allocate/free deal in:
// Allocate returns it on exhaustion, and Free treats it as a no-op.
type Ptr int32

const NullPtr Ptr = -1

// headerSize is the on-arena encoding of {free bool, size uint32, next
// int32}: 1 status byte, 3 bytes padding, two little-endian 4-byte fields,
// then 4 bytes of trailing padding. Keeping the header a multiple of 8 is
// what keeps every payload size a multiple of 8: the initial block and
// every split remainder are sized by subtracting headers.
const headerSize = 16

const (
	offFree = 0
	offSize = 4
	offNext = 8
)

// minSplit is the smallest extra room (another header plus an 8-byte
// payload) worth carving off as a new free block during allocate; slack
// below this is left as internal fragmentation on the granted block.
const minSplit = headerSize + 8

// Heap manages a single backing arena in [1<<20, 4<<20] bytes of free-list
// allocation. The zero value is not usable; construct with New.
type Heap struct {
	mem []byte
	log kernel.Logger
}

// New creates a Heap over an arena of size bytes (clamped to the spec's
// [1, 4] MiB range) with one initial free block covering it.
func New(size int, log kernel.Logger) *Heap {
	if log == nil {
		log = defaultLog
	}
	if size < 1<<20 {
		size = 1 << 20
	}
	if size > 4<<20 {
		size = 4 << 20
	}

	h := &Heap{mem: make([]byte, size), log: log}
	h.putHeader(0, true, uint32(size-headerSize), -1)
	return h
}

var defaultLog = kernel.NewLogger("heap")

func (h *Heap) header(off int) (free bool, size uint32, next int32) {
	free = h.mem[off+offFree] != 0
	size = binary.LittleEndian.Uint32(h.mem[off+offSize:])
	next = int32(binary.LittleEndian.Uint32(h.mem[off+offNext:]))
	return
}

func (h *Heap) putHeader(off int, free bool, size uint32, next int32) {
	if free {
		h.mem[off+offFree] = 1
	} else {
		h.mem[off+offFree] = 0
	}
	binary.LittleEndian.PutUint32(h.mem[off+offSize:], size)
	binary.LittleEndian.PutUint32(h.mem[off+offNext:], uint32(next))
}

func roundUp8(size int) int {
	return (size + 7) &^ 7
}

// Allocate reserves size bytes (rounded up to a multiple of 8), first-fit
// scanning the block chain from the head, splitting the chosen block if
// its slack leaves room for another header and an 8-byte payload.
// Exhaustion returns NullPtr, kernel.ErrCapacity.
func (h *Heap) Allocate(size int) (Ptr, error) {
	want := roundUp8(size)

	off := 0
	for off >= 0 {
		free, blockSize, next := h.header(off)
		if free && int(blockSize) >= want {
			if int(blockSize)-want >= minSplit {
				newOff := off + headerSize + want
				newSize := int(blockSize) - want - headerSize
				h.putHeader(newOff, true, uint32(newSize), next)
				h.putHeader(off, false, uint32(want), int32(newOff))
			} else {
				h.putHeader(off, false, blockSize, next)
			}
			return Ptr(off + headerSize), nil
		}
		off = int(next)
	}

	return NullPtr, kernel.ErrCapacity
}

// Free marks the block containing ptr as free, then walks the chain once
// from the head coalescing any free block with an address-contiguous free
// successor. The walk stays on a block after each merge, so a run of
// adjacent free blocks collapses into one block within the same pass.
// Freeing NullPtr is a no-op.
func (h *Heap) Free(ptr Ptr) {
	if ptr == NullPtr {
		return
	}

	headerOff := int(ptr) - headerSize
	free, size, next := h.header(headerOff)
	_ = free
	h.putHeader(headerOff, true, size, next)

	off := 0
	for off >= 0 {
		free, size, next := h.header(off)
		if free && next >= 0 {
			nextOff := int(next)
			nextFree, nextSize, nextNext := h.header(nextOff)
			if nextFree && off+headerSize+int(size) == nextOff {
				h.putHeader(off, true, size+uint32(headerSize)+nextSize, nextNext)
				continue
			}
		}
		off = int(next)
	}
}
