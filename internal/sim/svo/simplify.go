package svo

// Simplify collapses the split node at idx into a leaf when all 8 children are
// leaves of the same voxel. The freed block becomes the allocator's next candidate.
func (w *World) Simplify(idx uint32) (NodeSeq, bool) {
	n := w.arena.Node(idx)
	if !n.IsSplit() {
		return NodeSeq{}, false
	}
	first := n.FirstChild()
	v0 := w.arena.Node(first)
	if v0.Kind() != NodeLeaf {
		return NodeSeq{}, false
	}
	for i := first + 1; i < first+8; i++ {
		c := w.arena.Node(i)
		if c.Kind() != NodeLeaf || c.Voxel() != v0.Voxel() {
			return NodeSeq{}, false
		}
	}
	w.arena.FreeBlock(first)
	w.arena.ptr(idx).Simplify(v0.Voxel())
	return NodeSeq{Start: idx, Count: 1}, true
}

// SimplifyAll collapses every uniform subtree bottom-up and returns the touched
// nodes. Freed blocks leave holes, so callers should resync the whole buffer.
func (w *World) SimplifyAll() []NodeSeq {
	var changed []NodeSeq
	w.simplifyTree(0, &changed)
	return changed
}

func (w *World) simplifyTree(idx uint32, changed *[]NodeSeq) {
	n := w.arena.Node(idx)
	if !n.IsSplit() {
		return
	}
	first := n.FirstChild()
	for i := first; i < first+8; i++ {
		w.simplifyTree(i, changed)
	}
	if seq, ok := w.Simplify(idx); ok {
		*changed = append(*changed, seq)
	}
}
