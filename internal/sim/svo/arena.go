package svo

import "fmt"

// GrowChunk is the number of slots appended whenever the arena runs out of room.
const GrowChunk = 1024

// Arena owns every node of a world. Index 0 is the root; all other slots are
// handed out in blocks of 8 siblings starting at 8k+1.
//
// Nodes refer to each other by index only, so growing the backing slice never
// invalidates a stored child pointer even when append moves the storage.
type Arena struct {
	nodes []Node

	// startSearch is where the next AllocateOctet scan begins. It only moves
	// backwards when a block below it is freed.
	startSearch uint32
	// lastUsed is the high-water mark of slots the renderer needs to see.
	lastUsed uint32

	stats ArenaStats
}

// ArenaStats counts allocator activity since the arena was created or cleared.
type ArenaStats struct {
	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Grows     uint64 `json:"grows"`
}

// NewArena creates an arena with room for at least capacity slots. The slot count
// is rounded so that blocks of 8 after the root always fit exactly.
func NewArena(capacity int) *Arena {
	n := 1
	if capacity > 1 {
		n = 1 + roundUp8(capacity-1)
	}
	a := &Arena{nodes: make([]Node, n)}
	a.reset()
	return a
}

func roundUp8(n int) int { return (n + 7) &^ 7 }

func (a *Arena) reset() {
	for i := range a.nodes {
		a.nodes[i].markUnused()
	}
	a.nodes[0] = NewLeaf(Air)
	a.startSearch = 1
	a.lastUsed = 0
	a.stats = ArenaStats{}
}

// Len is the number of slots currently backed by storage.
func (a *Arena) Len() int { return len(a.nodes) }

// LastUsed is the highest slot index that may hold live data.
func (a *Arena) LastUsed() uint32 { return a.lastUsed }

// StartSearch is the allocator cursor.
func (a *Arena) StartSearch() uint32 { return a.startSearch }

func (a *Arena) Stats() ArenaStats { return a.stats }

// Nodes returns the slots [0, LastUsed]. The slice aliases arena storage and is
// only valid until the next mutation.
func (a *Arena) Nodes() []Node {
	return a.nodes[:a.lastUsed+1]
}

func (a *Arena) Node(idx uint32) Node {
	a.checkIndex(idx)
	return a.nodes[idx]
}

func (a *Arena) Set(idx uint32, n Node) {
	a.checkIndex(idx)
	a.nodes[idx] = n
}

func (a *Arena) ptr(idx uint32) *Node {
	a.checkIndex(idx)
	return &a.nodes[idx]
}

func (a *Arena) checkIndex(idx uint32) {
	if int(idx) >= len(a.nodes) {
		panic(fmt.Sprintf("svo: node index %d beyond arena length %d", idx, len(a.nodes)))
	}
}

// Swap exchanges the contents of two slots.
func (a *Arena) Swap(i, j uint32) {
	a.checkIndex(i)
	a.checkIndex(j)
	a.nodes[i], a.nodes[j] = a.nodes[j], a.nodes[i]
}

func (a *Arena) grow() {
	a.nodes = append(a.nodes, make([]Node, GrowChunk)...)
	a.stats.Grows++
	arenaGrowTotal.Inc()
}

// AllocateOctet reserves the next free block of 8 siblings at or after the cursor,
// fills it with leaves of v and returns the index of its first slot.
//
// Only the first slot of each candidate block is inspected since blocks are always
// allocated and freed whole. Holes below the cursor are never revisited unless a
// free moved the cursor back.
func (a *Arena) AllocateOctet(v Voxel) uint32 {
	idx := a.startSearch
	for {
		for int(idx)+8 > len(a.nodes) {
			a.grow()
		}
		if !a.nodes[idx].IsUsed() {
			break
		}
		idx += 8
	}
	a.startSearch = idx + 8

	leaf := NewLeaf(v)
	for i := idx; i < idx+8; i++ {
		a.nodes[i] = leaf
	}
	if idx+7 > a.lastUsed {
		a.lastUsed = idx + 7
	}
	a.stats.Allocated++
	octetsAllocatedTotal.Inc()
	return idx
}

// FreeBlock releases the block starting at first, along with every block owned by
// a split node inside it, and rewinds the cursor so the space is reused first.
func (a *Arena) FreeBlock(first uint32) {
	checkFirstChild(first)
	a.checkIndex(first + 7)
	if first < a.startSearch {
		a.startSearch = first
	}
	for i := first; i < first+8; i++ {
		a.freeNode(i)
	}
	a.stats.Freed++
	octetsFreedTotal.Inc()
}

func (a *Arena) freeNode(idx uint32) {
	n := a.nodes[idx]
	if n.IsSplit() {
		a.FreeBlock(n.FirstChild())
	}
	a.nodes[idx].markUnused()
}

// ClearNode frees the subtree below idx and resets idx itself to an AIR leaf.
func (a *Arena) ClearNode(idx uint32) {
	a.checkIndex(idx)
	if n := a.nodes[idx]; n.IsSplit() {
		a.FreeBlock(n.FirstChild())
	}
	a.nodes[idx] = NewLeaf(Air)
}

// Rewind moves the allocator cursor back to idx if it is below the current one.
func (a *Arena) Rewind(idx uint32) {
	checkFirstChild(idx)
	if idx < a.startSearch {
		a.startSearch = idx
	}
}

// Clear marks every slot unused and resets the root to an AIR leaf.
func (a *Arena) Clear() {
	a.reset()
}
