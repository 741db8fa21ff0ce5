package svo

import "sort"

// NodeSeq is a contiguous run of arena slots touched by a mutation.
type NodeSeq struct {
	Start uint32 `json:"start"`
	Count uint32 `json:"count"`
}

// End is one past the last index of the run.
func (s NodeSeq) End() uint32 { return s.Start + s.Count }

// Coalesce sorts the runs and merges the ones that overlap or touch. The input
// slice is reordered in place.
func Coalesce(seqs []NodeSeq) []NodeSeq {
	if len(seqs) < 2 {
		return seqs
	}
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Start != seqs[j].Start {
			return seqs[i].Start < seqs[j].Start
		}
		return seqs[i].Count > seqs[j].Count
	})
	out := seqs[:1]
	for _, s := range seqs[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End() {
			if s.End() > last.End() {
				last.Count = s.End() - last.Start
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// TotalNodes sums the counts of the runs.
func TotalNodes(seqs []NodeSeq) int {
	n := 0
	for _, s := range seqs {
		n += int(s.Count)
	}
	return n
}
