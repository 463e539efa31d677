// Package pagealloc is a watermark bump allocator over a fixed byte arena,
// ported from the source's alloc_pages/__free_ram: allocation only ever
// moves the watermark forward, pages are zero-filled on grant, and
// exhaustion is fatal rather than returning an error.
package pagealloc

import "github.com/fru1t-labs/coreos/kernel"

// PageSize matches the source's PAGE_SIZE.
const PageSize = 4096

// Region is the arena backing "physical RAM". The zero value is not usable;
// construct with NewRegion.
type Region struct {
	ram       []byte
	watermark int
	log       kernel.Logger
}

// NewRegion allocates an arena of size bytes, rounded down to a whole
// number of pages, and returns a Region ready to serve AllocPages. log may
// be nil, in which case the package default logger is used.
func NewRegion(size int, log kernel.Logger) *Region {
	if log == nil {
		log = defaultLog
	}
	pages := size / PageSize
	return &Region{
		ram: make([]byte, pages*PageSize),
		log: log,
	}
}

var defaultLog = kernel.NewLogger("pagealloc")

// Pages reports the arena's total capacity in pages.
func (r *Region) Pages() int { return len(r.ram) / PageSize }

// Used reports how many pages have been granted so far.
func (r *Region) Used() int { return r.watermark / PageSize }

// AllocPages grants n contiguous, zero-filled pages and advances the
// watermark past them. There is no corresponding free: once granted, a
// page is never reclaimed by this allocator, matching the source's
// never-frees design. Exhaustion calls kernel.Panic, matching the source's
// PANIC("out of memory") — this is the one place in the module that halts
// rather than returning an error.
func (r *Region) AllocPages(n int) []byte {
	if n <= 0 {
		kernel.Panic(r.log, "alloc_pages: invalid page count %d", n)
	}

	size := n * PageSize
	next := r.watermark + size
	if next > len(r.ram) {
		kernel.Panic(r.log, "out of memory: requested %d pages, %d remain", n, r.Pages()-r.Used())
	}

	region := r.ram[r.watermark:next]
	for i := range region {
		region[i] = 0
	}
	r.watermark = next
	return region
}
