// Package nodesync carries arena changes from the simulation to consumers that
// mirror the node buffer, such as renderers and observers.
package nodesync

import "voxeltrace.ai/internal/sim/svo"

// Batch is the set of changes accumulated over one step.
type Batch struct {
	// Resync means the whole arena must be re-sent and Seqs is empty.
	Resync   bool
	Seqs     []svo.NodeSeq
	LastUsed uint32
}

// Empty reports whether the batch carries nothing to upload.
func (b Batch) Empty() bool { return !b.Resync && len(b.Seqs) == 0 }

// Nodes is the number of slots the batch touches. For a resync that is every
// slot up to and including LastUsed.
func (b Batch) Nodes() int {
	if b.Resync {
		return int(b.LastUsed) + 1
	}
	return svo.TotalNodes(b.Seqs)
}

// Tracker accumulates the ranges returned by mutations until the next Flush.
// It is not safe for concurrent use; the game loop owns it.
type Tracker struct {
	seqs   []svo.NodeSeq
	resync bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Add(seqs ...svo.NodeSeq) {
	if t.resync {
		return
	}
	t.seqs = append(t.seqs, seqs...)
}

// MarkResync drops pending ranges; the next batch re-sends everything.
func (t *Tracker) MarkResync() {
	t.resync = true
	t.seqs = t.seqs[:0]
}

// Flush returns the accumulated changes with overlapping ranges merged and
// resets the tracker.
func (t *Tracker) Flush(lastUsed uint32) Batch {
	b := Batch{Resync: t.resync, LastUsed: lastUsed}
	if !t.resync && len(t.seqs) > 0 {
		merged := svo.Coalesce(t.seqs)
		b.Seqs = make([]svo.NodeSeq, len(merged))
		copy(b.Seqs, merged)
	}
	t.resync = false
	t.seqs = t.seqs[:0]
	return b
}
