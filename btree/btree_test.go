package btree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/fru1t-labs/coreos/internal/ktestutil"
)

func TestS2InsertAndSearch(t *testing.T) {
	tree := &Tree[uint32]{}
	keys := []uint32{10, 20, 5, 6, 12, 30, 7, 17}
	for _, k := range keys {
		if err := tree.Insert(k, k*10); err != nil {
			t.Fatalf("insert(%d): %v", k, err)
		}
	}

	if got, err := tree.Search(6); err != nil || got != 60 {
		t.Fatalf("search(6) = %v, %v; want 60, nil", got, err)
	}
	if _, err := tree.Search(99); err == nil {
		t.Fatalf("search(99) succeeded, want not-found")
	}
	if tree.Height() < 2 {
		t.Fatalf("height = %d, want >= 2", tree.Height())
	}

	assertInvariants(t, tree)
}

func TestInsertDuplicateRejected(t *testing.T) {
	tree := &Tree[uint32]{}
	if err := tree.Insert(5, 50); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Insert(5, 99); err == nil {
		t.Fatalf("duplicate insert succeeded, want ErrAlreadyPresent")
	}
	got, err := tree.Search(5)
	if err != nil || got != 50 {
		t.Fatalf("search(5) = %v, %v; want 50, nil (prior mapping must survive rejected insert)", got, err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	tree := &Tree[uint32]{}
	tree.Insert(1, 10)
	if err := tree.Delete(42); err == nil {
		t.Fatalf("delete of absent key succeeded, want not-found")
	}
}

func TestDeleteLeaf(t *testing.T) {
	tree := &Tree[uint32]{}
	keys := []uint32{10, 20, 5, 6, 12, 30, 7, 17}
	for _, k := range keys {
		tree.Insert(k, k*10)
	}
	if err := tree.Delete(6); err != nil {
		t.Fatalf("delete(6): %v", err)
	}
	if _, err := tree.Search(6); err == nil {
		t.Fatalf("search(6) succeeded after delete")
	}
	assertInvariants(t, tree)
}

// TestInsertDeleteRandom fuzzes insert/delete against a plain map oracle,
// checking invariant 2 (uniform leaf depth, every non-root node within
// [MinKeys, mergeCap] after the operation returns, see assertInvariants)
// and round-trip search
// after every step.
func TestInsertDeleteRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := &Tree[uint32]{}
	oracle := map[uint32]uint32{}

	for i := 0; i < 3000; i++ {
		key := uint32(rng.Intn(500))
		if _, present := oracle[key]; !present || rng.Intn(3) == 0 {
			if !present {
				if err := tree.Insert(key, key*10); err != nil {
					t.Fatalf("insert(%d): %v", key, err)
				}
				oracle[key] = key * 10
			} else {
				if err := tree.Delete(key); err != nil {
					t.Fatalf("delete(%d): %v", key, err)
				}
				delete(oracle, key)
			}
		} else {
			if err := tree.Delete(key); err != nil {
				t.Fatalf("delete(%d): %v", key, err)
			}
			delete(oracle, key)
		}

		for k, v := range oracle {
			got, err := tree.Search(k)
			if err != nil || got != v {
				t.Fatalf("after op %d: search(%d) = %v, %v; want %v, nil", i, k, got, err, v)
			}
		}
		assertInvariants(t, tree)
	}

	var traversed []uint32
	tree.Traverse(func(k uint32, v uint32) {
		traversed = append(traversed, k)
		if v != k*10 {
			t.Fatalf("traverse: key %d has value %d, want %d", k, v, k*10)
		}
	})

	var wantKeys []uint32
	for k := range oracle {
		wantKeys = append(wantKeys, k)
	}
	sort.Slice(wantKeys, func(i, j int) bool { return wantKeys[i] < wantKeys[j] })

	if diff := ktestutil.Diff(wantKeys, traversed); diff != "" {
		t.Fatalf("in-order traversal dump mismatch (-want +got):\n%s", diff)
	}
}

func TestDestroy(t *testing.T) {
	tree := &Tree[uint32]{}
	tree.Insert(1, 10)
	tree.Insert(2, 20)
	tree.Destroy()
	if tree.Len() != 0 || tree.Height() != 0 {
		t.Fatalf("tree not empty after Destroy: len=%d height=%d", tree.Len(), tree.Height())
	}
	if _, err := tree.Search(1); err == nil {
		t.Fatalf("search succeeded after Destroy")
	}
}

// assertInvariants checks invariant 2 from §8: every leaf is at the same
// depth, and every non-root node holds between MinKeys and MaxKeys keys —
// except a node may transiently hold up to mergeCap keys immediately after
// a delete-time merge, so the upper bound checked here is mergeCap; the
// next insert through that node restores the MaxKeys bound (see the
// mergeCap doc comment in btree.go and DESIGN.md).
func assertInvariants[V any](t *testing.T, tree *Tree[V]) {
	t.Helper()
	if tree.root == nil {
		return
	}
	depth := -1
	var walk func(n *node[V], d int)
	walk = func(n *node[V], d int) {
		if n != tree.root {
			if n.numKeys < MinKeys || n.numKeys > mergeCap {
				t.Fatalf("node at depth %d has %d keys, want [%d, %d]", d, n.numKeys, MinKeys, mergeCap)
			}
		}
		if n.leaf {
			if depth == -1 {
				depth = d
			} else if depth != d {
				t.Fatalf("leaf depth mismatch: got %d, want %d", d, depth)
			}
			return
		}
		for i := 0; i <= n.numKeys; i++ {
			child := n.children[i]
			if child == nil {
				t.Fatalf("internal node missing child %d at depth %d", i, d)
			}
			if child.parent != n {
				t.Fatalf("child %d at depth %d has wrong parent pointer", i, d)
			}
			walk(child, d+1)
		}
	}
	walk(tree.root, 0)
}
