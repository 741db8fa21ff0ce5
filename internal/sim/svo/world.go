package svo

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned for positions outside [Min, Max).
var ErrOutOfBounds = errors.New("svo: position out of bounds")

const (
	// NodeSize is the byte width of a packed node in the renderer buffer.
	NodeSize = 4

	DefaultMaxDepth    = 9
	DefaultBufferBytes = 256 << 20

	// initialNodes caps the up-front allocation; MaxNodes is only a hint.
	initialNodes = 1 + 64*GrowChunk
)

type Config struct {
	// MaxDepth fixes the world edge length at 2^MaxDepth voxels.
	MaxDepth uint32
	// BufferBytes is the renderer's node buffer budget; MaxNodes is derived from it.
	BufferBytes uint64
	Min         Vec3i
}

func (c *Config) applyDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.BufferBytes == 0 {
		c.BufferBytes = DefaultBufferBytes
	}
}

// World is a cube of voxels [Min, Min+Size) stored as a sparse voxel octree.
// It is not safe for concurrent use.
type World struct {
	min      Vec3i
	size     int
	maxDepth uint32
	maxNodes uint32

	arena *Arena
}

func New(cfg Config) *World {
	cfg.applyDefaults()
	if cfg.MaxDepth > 30 {
		panic(fmt.Sprintf("svo: max depth %d too large", cfg.MaxDepth))
	}
	maxNodes := uint32(min(cfg.BufferBytes/NodeSize, uint64(^uint32(0))))
	capacity := int(min(maxNodes, initialNodes))
	return &World{
		min:      cfg.Min,
		size:     1 << cfg.MaxDepth,
		maxDepth: cfg.MaxDepth,
		maxNodes: maxNodes,
		arena:    NewArena(capacity),
	}
}

func (w *World) Min() Vec3i       { return w.min }
func (w *World) Max() Vec3i       { return w.min.Add(Splat(w.size)) }
func (w *World) Size() int        { return w.size }
func (w *World) MaxDepth() uint32 { return w.maxDepth }

// MaxNodes is the renderer buffer capacity in nodes. The arena may grow past it.
func (w *World) MaxNodes() uint32 { return w.maxNodes }

func (w *World) Arena() *Arena { return w.arena }

// Nodes returns the live prefix of the arena for a full upload.
func (w *World) Nodes() []Node { return w.arena.Nodes() }

func (w *World) LastUsedNode() uint32 { return w.arena.LastUsed() }

func (w *World) Node(idx uint32) Node { return w.arena.Node(idx) }

// SetMaxDepth changes the depth and edge length. Existing contents are not rescaled,
// so it is only meaningful on a cleared world.
func (w *World) SetMaxDepth(depth uint32) {
	if depth > 30 {
		panic(fmt.Sprintf("svo: max depth %d too large", depth))
	}
	w.maxDepth = depth
	w.size = 1 << depth
}

func (w *World) Clear() {
	w.arena.Clear()
}

func (w *World) ClearNode(idx uint32) { w.arena.ClearNode(idx) }

func (w *World) SwapNodes(a, b uint32) { w.arena.Swap(a, b) }

func (w *World) CheckBounds(pos Vec3i) error {
	lo, hi := w.min, w.Max()
	if pos.X < lo.X || pos.Y < lo.Y || pos.Z < lo.Z ||
		pos.X >= hi.X || pos.Y >= hi.Y || pos.Z >= hi.Z {
		return ErrOutOfBounds
	}
	return nil
}

// FoundNode describes the cell reached by a point query.
type FoundNode struct {
	Index  uint32
	Depth  uint32
	Center Vec3i
	Size   int
}

// FindNode descends towards pos until it reaches a leaf or maxDepth. A result with
// Depth < maxDepth means the tree is not subdivided that far around pos.
func (w *World) FindNode(pos Vec3i, maxDepth uint32) (FoundNode, error) {
	if err := w.CheckBounds(pos); err != nil {
		return FoundNode{}, err
	}

	found := FoundNode{
		Center: w.min.Add(Splat(w.size / 2)),
		Size:   w.size,
	}
	for {
		n := w.arena.Node(found.Index)
		if !n.IsSplit() || found.Depth == maxDepth {
			return found, nil
		}
		octant := descend(pos, &found.Center, &found.Size)
		found.Index = n.Child(octant)
		found.Depth++
	}
}

// descend picks the octant of pos within the cell at center, halves size and moves
// center to the child cell. Positions on the center plane go to the greater side.
func descend(pos Vec3i, center *Vec3i, size *int) uint32 {
	*size /= 2
	half := *size / 2

	var octant uint32
	step := func(p, c int, bit uint32) int {
		if p >= c {
			octant |= bit
			return c + half
		}
		return c - half
	}
	center.X = step(pos.X, center.X, 1)
	center.Y = step(pos.Y, center.Y, 2)
	center.Z = step(pos.Z, center.Z, 4)
	return octant
}

// OctantOffset returns the (0|1) offset of octant along each axis.
func OctantOffset(octant uint32) Vec3i {
	return Vec3i{int(octant & 1), int(octant>>1) & 1, int(octant>>2) & 1}
}

// Octant is the inverse of OctantOffset.
func Octant(x, y, z int) uint32 {
	return uint32(x) | uint32(y)<<1 | uint32(z)<<2
}

func (w *World) GetVoxel(pos Vec3i) (Voxel, error) {
	found, err := w.FindNode(pos, w.maxDepth)
	if err != nil {
		return Air, err
	}
	return w.arena.Node(found.Index).Voxel(), nil
}

// SetVoxel writes v at pos, splitting leaves down to full depth as needed. The
// returned ranges are top-down: the located node first, then each new octet.
func (w *World) SetVoxel(pos Vec3i, v Voxel) ([]NodeSeq, error) {
	found, err := w.FindNode(pos, w.maxDepth)
	if err != nil {
		return nil, err
	}
	idx, center, size := found.Index, found.Center, found.Size
	old := w.arena.Node(idx).Voxel()

	changed := make([]NodeSeq, 0, 1+w.maxDepth-found.Depth)
	changed = append(changed, NodeSeq{Start: idx, Count: 1})

	for depth := found.Depth; depth < w.maxDepth; depth++ {
		first := w.arena.AllocateOctet(old)
		w.arena.ptr(idx).Split(first)
		changed = append(changed, NodeSeq{Start: first, Count: 8})

		idx = first + descend(pos, &center, &size)
	}
	w.arena.ptr(idx).SetVoxel(v)
	return changed, nil
}

// FillVoxels sets every integer position in the inclusive box spanned by a and b.
// Positions outside the world are skipped.
func (w *World) FillVoxels(a, b Vec3i, v Voxel) []NodeSeq {
	lo, hi := a.Min(b), a.Max(b)
	var changed []NodeSeq
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				seqs, err := w.SetVoxel(Vec3i{x, y, z}, v)
				if err != nil {
					continue
				}
				changed = append(changed, seqs...)
			}
		}
	}
	return changed
}
