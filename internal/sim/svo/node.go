package svo

import "fmt"

// NodeKind selects which interpretation of a Node is meaningful.
type NodeKind uint8

const (
	NodeUnused NodeKind = iota
	NodeLeaf
	NodeSplit
)

func (k NodeKind) String() string {
	switch k {
	case NodeUnused:
		return "UNUSED"
	case NodeLeaf:
		return "LEAF"
	case NodeSplit:
		return "SPLIT"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Node is a single octree cell.
//
// In memory a node is a tagged value: unused, a leaf holding a voxel id, or a split
// node pointing at the first of its 8 contiguous children. The 32-bit packed form
// consumed by the renderer is produced only by Pack:
//
//	00______________________________  unused
//	10______________________________  invalid
//	01______________________xxxxxxxx  leaf, x = voxel id
//	11xxxxxxxxxxxxxxxxxxxxxxxxxxxxxx  split, x = (first_child - 1) / 8
//
// Every first child index is one more than a multiple of 8 (index 0 is the root and
// blocks of 8 siblings follow it), which is what lets the split form drop 3 bits.
type Node struct {
	kind  NodeKind
	voxel Voxel
	child uint32
}

const (
	packedUsed  = uint32(1) << 30
	packedSplit = uint32(1) << 31
	payloadMask = packedUsed - 1

	// MaxFirstChild is the largest 8k+1 index whose block of 8 children still fits
	// in a uint32 index.
	MaxFirstChild = ^uint32(0) - 14
	maxPayload    = (MaxFirstChild - 1) / 8
)

func NewLeaf(v Voxel) Node {
	return Node{kind: NodeLeaf, voxel: v}
}

func NewSplit(firstChild uint32) Node {
	var n Node
	n.Split(firstChild)
	return n
}

func (n Node) Kind() NodeKind { return n.kind }
func (n Node) IsUsed() bool   { return n.kind != NodeUnused }
func (n Node) IsSplit() bool  { return n.kind == NodeSplit }

// Voxel returns the leaf voxel. Split and unused nodes report AIR.
func (n Node) Voxel() Voxel {
	if n.kind != NodeLeaf {
		return Air
	}
	return n.voxel
}

// FirstChild returns the index of the first of the node's 8 children, or 0 when the
// node is not split.
func (n Node) FirstChild() uint32 {
	if n.kind != NodeSplit {
		return 0
	}
	return n.child
}

// Child returns the arena index of the given octant (0..7).
func (n Node) Child(octant uint32) uint32 {
	if n.kind != NodeSplit {
		panic(fmt.Sprintf("svo: Child(%d) on %s node", octant, n.kind))
	}
	if octant > 7 {
		panic(fmt.Sprintf("svo: octant %d out of range", octant))
	}
	return n.child + octant
}

// SetVoxel turns the node into a leaf holding v.
func (n *Node) SetVoxel(v Voxel) {
	n.kind = NodeLeaf
	n.voxel = v
	n.child = 0
}

// Split turns the node into a split node whose children start at firstChild.
// A misaligned first child corrupts every later descent, so it always panics.
func (n *Node) Split(firstChild uint32) {
	checkFirstChild(firstChild)
	n.kind = NodeSplit
	n.voxel = Air
	n.child = firstChild
}

// Simplify collapses a split node into a leaf of v. The caller owns freeing the
// former children.
func (n *Node) Simplify(v Voxel) {
	n.SetVoxel(v)
}

func (n *Node) markUnused() {
	*n = Node{}
}

func checkFirstChild(firstChild uint32) {
	if firstChild == 0 || (firstChild-1)%8 != 0 || firstChild > MaxFirstChild {
		panic(fmt.Sprintf("svo: invalid first child index %d (want 8k+1)", firstChild))
	}
}

// Pack encodes the node into the renderer's 32-bit layout.
func (n Node) Pack() uint32 {
	switch n.kind {
	case NodeLeaf:
		return packedUsed | uint32(n.voxel)
	case NodeSplit:
		return packedSplit | packedUsed | (n.child-1)/8
	default:
		return 0
	}
}

// Unpack decodes a packed 32-bit node. The split-but-unused bit pattern is rejected.
func Unpack(w uint32) (Node, error) {
	used := w&packedUsed != 0
	split := w&packedSplit != 0
	switch {
	case !used && split:
		return Node{}, fmt.Errorf("svo: invalid packed node %#08x (split without used)", w)
	case !used:
		return Node{}, nil
	case split:
		p := w & payloadMask
		if p > maxPayload {
			return Node{}, fmt.Errorf("svo: invalid packed node %#08x (first child out of range)", w)
		}
		return Node{kind: NodeSplit, child: p*8 + 1}, nil
	default:
		return Node{kind: NodeLeaf, voxel: Voxel(w & 0xff)}, nil
	}
}

func (n Node) String() string {
	switch n.kind {
	case NodeLeaf:
		return fmt.Sprintf("leaf(%s)", n.voxel)
	case NodeSplit:
		return fmt.Sprintf("split(%d)", n.child)
	default:
		return "unused"
	}
}
