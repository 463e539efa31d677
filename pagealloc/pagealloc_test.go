package pagealloc

import "testing"

func TestAllocPagesAdvancesWatermark(t *testing.T) {
	r := NewRegion(4*PageSize, nil)
	if r.Pages() != 4 {
		t.Fatalf("Pages() = %d, want 4", r.Pages())
	}

	a := r.AllocPages(1)
	if len(a) != PageSize {
		t.Fatalf("len(a) = %d, want %d", len(a), PageSize)
	}
	if r.Used() != 1 {
		t.Fatalf("Used() = %d, want 1", r.Used())
	}

	b := r.AllocPages(2)
	if len(b) != 2*PageSize {
		t.Fatalf("len(b) = %d, want %d", len(b), 2*PageSize)
	}
	if r.Used() != 3 {
		t.Fatalf("Used() = %d, want 3", r.Used())
	}

	// a and b must not overlap.
	b[0] = 0xff
	if a[0] == 0xff {
		t.Fatalf("allocations alias the same memory")
	}
}

func TestAllocPagesZeroFilled(t *testing.T) {
	r := NewRegion(2*PageSize, nil)
	a := r.AllocPages(1)
	for i := range a {
		a[i] = 0xaa
	}
	// A second grant must never reuse a's bytes (no free exists), and must
	// itself arrive zeroed.
	b := r.AllocPages(1)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("AllocPages returned non-zero byte at %d: %#x", i, v)
		}
	}
}

func TestAllocPagesExhaustionPanics(t *testing.T) {
	r := NewRegion(1*PageSize, nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("AllocPages past capacity did not panic")
		}
	}()
	r.AllocPages(2)
}

func TestAllocPagesNeverFrees(t *testing.T) {
	r := NewRegion(2*PageSize, nil)
	r.AllocPages(1)
	r.AllocPages(1)
	defer func() {
		if recover() == nil {
			t.Fatalf("AllocPages on exhausted region did not panic")
		}
	}()
	r.AllocPages(1)
}
