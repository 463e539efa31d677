// Package descriptor is the fixed-size descriptor table and its UART and
// pipe backends, ported from the source's fd.c/fd.h: rotating-cursor slot
// allocation, ref-counted close-on-zero, and an {read, write, poll, close}
// operations table (fd_ops) expressed here as the Ops interface.
package descriptor

import (
	"github.com/fru1t-labs/coreos/kernel"
)

// MaxDescriptors is the fixed table size, matching the source's MAX_FDS.
const MaxDescriptors = 64

// Flag is a descriptor's cached readiness bitset, matching FD_READABLE /
// FD_WRITABLE / FD_ERROR / FD_HANGUP.
type Flag uint32

const (
	Readable Flag = 1 << iota
	Writable
	Error
	Hangup
)

// Kind distinguishes what backs a descriptor slot.
type Kind int

const (
	KindUnused Kind = iota
	KindFile
	KindUART
	KindPipe
	KindSocket
)

// Ops is the operations table a backend supplies when it is allocated into
// a descriptor slot, matching the source's struct fd_ops function-pointer
// table. ctx is the opaque value passed to Alloc and handed back to every
// call so one backend implementation can serve many slots.
type Ops interface {
	Read(ctx interface{}, buf []byte) (int, error)
	Write(ctx interface{}, buf []byte) (int, error)
	Poll(ctx interface{}) Flag
	Close(ctx interface{})
}

// descriptor is one table slot.
type descriptor struct {
	num      int
	kind     Kind
	flags    Flag
	ctx      interface{}
	ops      Ops
	refCount uint32
}

// Table is the descriptor table, matching struct fd_table. Its size is
// fixed at construction (MaxDescriptors by default, via NewTable), not at
// compile time, so a kernel.Config can size it down or up per instance.
type Table struct {
	slots  []descriptor
	nextFD int
	log    kernel.Logger
}

var defaultLog = kernel.NewLogger("descriptor")

// NewTable returns an empty descriptor table of size slots, all UNUSED.
func NewTable(size int, log kernel.Logger) *Table {
	if log == nil {
		log = defaultLog
	}
	t := &Table{slots: make([]descriptor, size), log: log}
	for i := range t.slots {
		t.slots[i].num = i
	}
	return t
}

// Alloc finds the next UNUSED slot scanning from the table's rotating
// cursor (not from zero), matching the source's fd_alloc, and returns its
// descriptor number. Fails with kernel.ErrCapacity if every slot is in use.
func (t *Table) Alloc(kind Kind, ctx interface{}, ops Ops) (int, error) {
	size := len(t.slots)
	for i := 0; i < size; i++ {
		num := (t.nextFD + i) % size
		d := &t.slots[num]
		if d.kind == KindUnused {
			d.kind = kind
			d.flags = 0
			d.ctx = ctx
			d.ops = ops
			d.refCount = 1

			t.nextFD = (num + 1) % size
			t.log.Printf("fd: allocated descriptor %d (kind=%d)", num, kind)
			return num, nil
		}
	}

	t.log.Printf("fd: no free descriptors")
	return -1, kernel.ErrCapacity
}

// Get returns the slot for num, or nil if num is out of range or UNUSED.
func (t *Table) Get(num int) *descriptor {
	if num < 0 || num >= len(t.slots) {
		return nil
	}
	d := &t.slots[num]
	if d.kind == KindUnused {
		return nil
	}
	return d
}

// Close decrements num's reference count, invoking its backend's Close and
// resetting the slot to UNUSED once the count reaches zero. A no-op on an
// already-UNUSED or out-of-range num.
func (t *Table) Close(num int) {
	d := t.Get(num)
	if d == nil {
		return
	}

	d.refCount--
	if d.refCount > 0 {
		return
	}

	d.ops.Close(d.ctx)
	d.kind = KindUnused
	d.flags = 0
	d.ctx = nil
	d.ops = nil
	d.refCount = 0

	t.log.Printf("fd: closed descriptor %d", num)
}

// Poll dispatches to num's backend, caches the result into the slot's
// flags, and returns it. Returns 0 for an unknown or UNUSED num.
func (t *Table) Poll(num int) Flag {
	d := t.Get(num)
	if d == nil {
		return 0
	}
	d.flags = d.ops.Poll(d.ctx)
	return d.flags
}

// Read dispatches to num's backend.
func (t *Table) Read(num int, buf []byte) (int, error) {
	d := t.Get(num)
	if d == nil {
		return 0, kernel.ErrInvalidHandle
	}
	return d.ops.Read(d.ctx, buf)
}

// Write dispatches to num's backend.
func (t *Table) Write(num int, buf []byte) (int, error) {
	d := t.Get(num)
	if d == nil {
		return 0, kernel.ErrInvalidHandle
	}
	return d.ops.Write(d.ctx, buf)
}

// Kind reports num's backend kind, or KindUnused if num is unallocated.
func (t *Table) Kind(num int) Kind {
	d := t.Get(num)
	if d == nil {
		return KindUnused
	}
	return d.kind
}

// RefCount reports num's current reference count (0 if unallocated),
// exposed for invariant checks (ref_count >= 1 iff kind != UNUSED).
func (t *Table) RefCount(num int) uint32 {
	if num < 0 || num >= len(t.slots) {
		return 0
	}
	return t.slots[num].refCount
}

// Size reports the table's slot count, as sized at construction.
func (t *Table) Size() int { return len(t.slots) }
