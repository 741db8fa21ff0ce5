package svo

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func newTestWorld(depth uint32) *World {
	return New(Config{MaxDepth: depth, BufferBytes: 4 * 4096})
}

// shape renders the tree below idx without arena indices so two worlds can be
// compared structurally.
func shape(w *World, idx uint32) string {
	n := w.Node(idx)
	if !n.IsSplit() {
		return n.Voxel().String()
	}
	parts := make([]string, 8)
	for o := uint32(0); o < 8; o++ {
		parts[o] = shape(w, n.Child(o))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func TestWorld_NewDerivesSizes(t *testing.T) {
	w := New(Config{MaxDepth: 5, BufferBytes: 1024, Min: V3(-16, 0, -16)})
	if w.Size() != 32 || w.MaxNodes() != 256 {
		t.Fatalf("size=%d maxNodes=%d", w.Size(), w.MaxNodes())
	}
	if w.Max() != V3(16, 32, 16) {
		t.Fatalf("max: %v", w.Max())
	}
	if w.LastUsedNode() != 0 || len(w.Nodes()) != 1 {
		t.Fatalf("fresh world should expose only the root")
	}

	d := New(Config{})
	if d.MaxDepth() != DefaultMaxDepth || d.Size() != 1<<DefaultMaxDepth {
		t.Fatalf("defaults: depth=%d size=%d", d.MaxDepth(), d.Size())
	}
}

func TestWorld_SetVoxelDepthTwoScenario(t *testing.T) {
	w := newTestWorld(2)

	seqs, err := w.SetVoxel(V3(0, 0, 0), Stone)
	if err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	want := []NodeSeq{{Start: 0, Count: 1}, {Start: 1, Count: 8}, {Start: 9, Count: 8}}
	if fmt.Sprint(seqs) != fmt.Sprint(want) {
		t.Fatalf("changed ranges: got %v want %v", seqs, want)
	}
	if got := w.Arena().Stats().Allocated; got != 2 {
		t.Fatalf("allocated octets: got %d want 2", got)
	}
	if n := w.Node(0); n.FirstChild() != 1 {
		t.Fatalf("root: %v", n)
	}
	if n := w.Node(1); n.FirstChild() != 9 {
		t.Fatalf("child of root: %v", n)
	}
	if n := w.Node(9); n.Kind() != NodeLeaf || n.Voxel() != Stone {
		t.Fatalf("leaf: %v", n)
	}
	if v, _ := w.GetVoxel(V3(0, 0, 0)); v != Stone {
		t.Fatalf("get (0,0,0): %v", v)
	}
	if v, _ := w.GetVoxel(V3(3, 3, 3)); v != Air {
		t.Fatalf("get (3,3,3): %v", v)
	}
	if v, _ := w.GetVoxel(V3(1, 0, 0)); v != Air {
		t.Fatalf("sibling (1,0,0): %v", v)
	}
	if w.LastUsedNode() != 16 {
		t.Fatalf("lastUsed: %d", w.LastUsedNode())
	}
}

func TestWorld_BoundaryGoesToGreaterOctant(t *testing.T) {
	w := newTestWorld(2)
	// Root center is (2,2,2); x == center.x must land in the +x half.
	if _, err := w.SetVoxel(V3(2, 0, 0), Gold); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	root := w.Node(0)
	if !w.Node(root.Child(Octant(1, 0, 0))).IsSplit() {
		t.Fatalf("expected +x octant to be split")
	}
	if w.Node(root.Child(Octant(0, 0, 0))).IsSplit() {
		t.Fatalf("-x octant must stay a leaf")
	}
	if v, _ := w.GetVoxel(V3(2, 0, 0)); v != Gold {
		t.Fatalf("(2,0,0): %v", v)
	}
	if v, _ := w.GetVoxel(V3(1, 0, 0)); v != Air {
		t.Fatalf("(1,0,0): %v", v)
	}
}

func TestWorld_OutOfBounds(t *testing.T) {
	w := New(Config{MaxDepth: 3, Min: V3(-4, 0, -4)})
	for _, p := range []Vec3i{V3(-5, 0, 0), V3(4, 0, 0), V3(0, -1, 0), V3(0, 8, 0), V3(0, 0, 4)} {
		if _, err := w.GetVoxel(p); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("GetVoxel %v: err=%v", p, err)
		}
		seqs, err := w.SetVoxel(p, Stone)
		if !errors.Is(err, ErrOutOfBounds) || seqs != nil {
			t.Fatalf("SetVoxel %v: seqs=%v err=%v", p, seqs, err)
		}
	}
	if w.LastUsedNode() != 0 || w.Node(0).IsSplit() {
		t.Fatalf("out-of-bounds writes must not mutate the tree")
	}
	if err := w.CheckBounds(V3(-4, 7, 3)); err != nil {
		t.Fatalf("corner should be in bounds: %v", err)
	}
}

func TestWorld_FindNodeUnderResolved(t *testing.T) {
	w := newTestWorld(4)
	if _, err := w.SetVoxel(V3(0, 0, 0), Dirt); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	found, err := w.FindNode(V3(15, 15, 15), w.MaxDepth())
	if err != nil {
		t.Fatalf("FindNode: %v", err)
	}
	if found.Depth != 1 || found.Size != 8 || found.Center != V3(12, 12, 12) {
		t.Fatalf("unexpected found node: %+v", found)
	}

	capped, err := w.FindNode(V3(0, 0, 0), 2)
	if err != nil {
		t.Fatalf("FindNode capped: %v", err)
	}
	if capped.Depth != 2 || capped.Size != 4 || capped.Center != V3(2, 2, 2) {
		t.Fatalf("unexpected capped node: %+v", capped)
	}
	if !w.Node(capped.Index).IsSplit() {
		t.Fatalf("capped node should still be split below")
	}
}

func TestWorld_SetThenGetRandom(t *testing.T) {
	w := New(Config{MaxDepth: 4, Min: V3(-8, 0, -8)})
	rng := rand.New(rand.NewSource(7))
	want := map[Vec3i]Voxel{}
	for i := 0; i < 400; i++ {
		p := V3(rng.Intn(16)-8, rng.Intn(16), rng.Intn(16)-8)
		v := Voxel(rng.Intn(int(Bright) + 1))
		if _, err := w.SetVoxel(p, v); err != nil {
			t.Fatalf("SetVoxel %v: %v", p, err)
		}
		want[p] = v
		if got, _ := w.GetVoxel(p); got != v {
			t.Fatalf("immediate read %v: got %v want %v", p, got, v)
		}
	}
	for p, v := range want {
		if got, _ := w.GetVoxel(p); got != v {
			t.Fatalf("final read %v: got %v want %v", p, got, v)
		}
	}
}

func TestWorld_SetVoxelIdempotent(t *testing.T) {
	once := newTestWorld(3)
	twice := newTestWorld(3)
	p := V3(5, 1, 6)

	if _, err := once.SetVoxel(p, Clay); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	twice.SetVoxel(p, Clay)
	seqs, err := twice.SetVoxel(p, Clay)
	if err != nil {
		t.Fatalf("second SetVoxel: %v", err)
	}
	if len(seqs) != 1 || seqs[0].Count != 1 {
		t.Fatalf("second write should touch only the leaf: %v", seqs)
	}
	if shape(once, 0) != shape(twice, 0) {
		t.Fatalf("shapes differ:\n%s\n%s", shape(once, 0), shape(twice, 0))
	}
}

func TestWorld_SameVoxelStillSplitsDown(t *testing.T) {
	w := newTestWorld(3)
	seqs, err := w.SetVoxel(V3(1, 1, 1), Air)
	if err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	if len(seqs) != 4 {
		t.Fatalf("expected full split-down, got %v", seqs)
	}
	if v, _ := w.GetVoxel(V3(7, 7, 7)); v != Air {
		t.Fatalf("unexpected voxel: %v", v)
	}
}

func TestWorld_SplitPreservesOldFill(t *testing.T) {
	w := newTestWorld(3)
	w.Arena().Set(0, NewLeaf(Stone))
	if _, err := w.SetVoxel(V3(0, 0, 0), Air); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	for _, p := range []Vec3i{V3(1, 0, 0), V3(7, 7, 7), V3(3, 3, 3)} {
		if v, _ := w.GetVoxel(p); v != Stone {
			t.Fatalf("%v: got %v want Stone", p, v)
		}
	}
}

func TestWorld_FillVoxels(t *testing.T) {
	w := New(Config{MaxDepth: 4, Min: V3(-8, 0, -8)})
	a, b := V3(3, 5, -2), V3(-1, 2, 1)
	seqs := w.FillVoxels(a, b, Sand)
	if len(seqs) == 0 {
		t.Fatalf("expected changed ranges")
	}
	for x := -1; x <= 3; x++ {
		for y := 2; y <= 5; y++ {
			for z := -2; z <= 1; z++ {
				if v, _ := w.GetVoxel(V3(x, y, z)); v != Sand {
					t.Fatalf("(%d,%d,%d): got %v", x, y, z, v)
				}
			}
		}
	}
	if v, _ := w.GetVoxel(V3(4, 5, 1)); v != Air {
		t.Fatalf("outside fill: %v", v)
	}
}

func TestWorld_FillVoxelsSkipsOutOfBounds(t *testing.T) {
	w := newTestWorld(2)
	w.FillVoxels(V3(-2, 0, 0), V3(1, 0, 0), Dirt)
	for x := 0; x <= 1; x++ {
		if v, _ := w.GetVoxel(V3(x, 0, 0)); v != Dirt {
			t.Fatalf("x=%d: %v", x, v)
		}
	}
}

func TestWorld_ClearAndSetMaxDepth(t *testing.T) {
	w := newTestWorld(3)
	w.FillVoxels(V3(0, 0, 0), V3(7, 1, 7), Stone)
	w.Clear()
	if w.LastUsedNode() != 0 || w.Node(0) != NewLeaf(Air) {
		t.Fatalf("clear did not reset the tree")
	}
	w.SetMaxDepth(5)
	if w.Size() != 32 || w.Max() != V3(32, 32, 32) {
		t.Fatalf("SetMaxDepth: size=%d max=%v", w.Size(), w.Max())
	}
	if _, err := w.SetVoxel(V3(31, 31, 31), Gold); err != nil {
		t.Fatalf("SetVoxel after depth change: %v", err)
	}
}

func TestCoalesce(t *testing.T) {
	in := []NodeSeq{{Start: 9, Count: 8}, {Start: 0, Count: 1}, {Start: 1, Count: 8}, {Start: 12, Count: 1}, {Start: 40, Count: 8}}
	got := Coalesce(in)
	want := []NodeSeq{{Start: 0, Count: 17}, {Start: 40, Count: 8}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if TotalNodes(got) != 25 {
		t.Fatalf("total: %d", TotalNodes(got))
	}
}
