// Package mapped implements the mapped-segment engine of spec.md §4.G:
// given a source segment and a target genome, it walks up to their most
// recent common ancestor and back down to produce every homologous
// segment on the target, branching across paralogs when traverseDupes
// is set.
package mapped

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/segiter"
)

// Kind distinguishes which of a genome's two arrays a Segment's
// TargetIdx refers into. Mapping onto a strict ancestor of the source
// naturally lands on a bottom segment (the ancestor received the
// alignment through its child-oriented covering of that descendant);
// mapping onto anything else -- a descendant, a sibling, a cousin --
// lands on a top segment.
type Kind int

const (
	// Top means TargetIdx indexes the target genome's top-segment array.
	Top Kind = iota
	// Bottom means TargetIdx indexes the target genome's bottom-segment
	// array.
	Bottom
)

// Segment is one homologous range produced by mapping a source segment
// onto a target genome.
type Segment struct {
	SourceGenome *genome.Genome
	SourceIdx    int64
	TargetGenome *genome.Genome
	TargetKind   Kind
	TargetIdx    int64
	Start        int64
	Length       int64
	Reversed     bool
}

// ancestry returns g and every ancestor up to and including the root,
// nearest first.
func ancestry(g *genome.Genome) []*genome.Genome {
	chain := []*genome.Genome{g}
	for cur := g; !cur.IsRoot(); {
		cur = cur.Parent()
		chain = append(chain, cur)
	}
	return chain
}

// mrca returns the most recent common ancestor of a and b within the
// same rooted tree, plus the downward path from the MRCA to b
// (excluding the MRCA, including b).
func mrca(a, b *genome.Genome) (*genome.Genome, []*genome.Genome) {
	aChain := ancestry(a)
	aIdx := make(map[int]bool, len(aChain))
	for _, g := range aChain {
		aIdx[g.Index()] = true
	}
	bChain := ancestry(b)
	for i, g := range bChain {
		if aIdx[g.Index()] {
			down := make([]*genome.Genome, i)
			for j := 0; j < i; j++ {
				down[j] = bChain[i-1-j]
			}
			return g, down
		}
	}
	return nil, nil
}

// childSlotOf returns parent's child-slot index for child, or -1 if
// child is not one of parent's direct children.
func childSlotOf(parent, child *genome.Genome) int {
	for i, idx := range parent.ChildrenIdx {
		if idx == child.Index() {
			return i
		}
	}
	return -1
}

// position is a cursor reached while walking up toward the MRCA: either
// a top iterator (only possible at the very start, when source and
// anchor coincide) or a bottom iterator (the normal case -- crossing to
// a parent always lands in the parent's bottom array, and the walk
// stops there rather than forcing a pointless toParseUp/toParseDown
// round trip through the top domain, which also lets the anchor be the
// root genome, which has no top array at all).
type position struct {
	top *segiter.TopIterator
	bot *segiter.BottomIterator
}

func (p position) genome() *genome.Genome {
	if p.top != nil {
		return p.top.Genome()
	}
	return p.bot.Genome()
}

// descendTo moves p one level down the tree, into genome child.
func (p position) descendTo(child *genome.Genome) (*segiter.TopIterator, error) {
	bi := p.bot
	if p.top != nil {
		var err error
		bi, err = segiter.ToParseDown(p.top)
		if err != nil {
			return nil, err
		}
	}
	slot := childSlotOf(bi.Genome(), child)
	if slot < 0 {
		return nil, halerrors.E(halerrors.Invariant, "genome", child.Name, "is not a child of", bi.Genome().Name)
	}
	return segiter.ToChild(bi, slot)
}

// MapSegment maps the top segment at srcIdx of src onto target,
// returning every homologous segment found. It fails soft: a source
// with no parent path reaching target (or a duplication branch that
// dead-ends) simply contributes no segments, rather than an error.
func MapSegment(src *genome.Genome, srcIdx int64, target *genome.Genome, traverseDupes bool) ([]Segment, error) {
	start, err := segiter.NewTopIterator(src, srcIdx)
	if err != nil {
		return nil, err
	}

	anchor, downPath := mrca(src, target)
	if anchor == nil {
		return nil, nil
	}

	upResults, err := walkUp(start, anchor, traverseDupes)
	if err != nil {
		return nil, err
	}

	var out []Segment
	for _, pos := range upResults {
		final, err := walkDown(pos, downPath)
		if err != nil {
			return nil, err
		}
		if final == nil {
			continue
		}
		seg, err := positionToSegment(src, srcIdx, *final)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func positionToSegment(src *genome.Genome, srcIdx int64, pos position) (Segment, error) {
	if pos.top != nil {
		start, err := pos.top.StartPos()
		if err != nil {
			return Segment{}, err
		}
		return Segment{
			SourceGenome: src, SourceIdx: srcIdx,
			TargetGenome: pos.top.Genome(), TargetKind: Top, TargetIdx: pos.top.ArrayIndex(),
			Start: start, Length: pos.top.Length(), Reversed: pos.top.Reversed(),
		}, nil
	}
	start, err := pos.bot.StartPos()
	if err != nil {
		return Segment{}, err
	}
	return Segment{
		SourceGenome: src, SourceIdx: srcIdx,
		TargetGenome: pos.bot.Genome(), TargetKind: Bottom, TargetIdx: pos.bot.ArrayIndex(),
		Start: start, Length: pos.bot.Length(), Reversed: pos.bot.Reversed(),
	}, nil
}

// walkUp climbs from ti toward anchor, crossing to each parent in turn,
// branching across every paralog in the ring when traverseDupes is set
// and more climbing remains above the crossing. It stops as soon as a
// crossing lands in anchor itself.
func walkUp(ti *segiter.TopIterator, anchor *genome.Genome, traverseDupes bool) ([]position, error) {
	if ti.Genome().Index() == anchor.Index() {
		return []position{{top: ti}}, nil
	}
	bi, err := segiter.ToParent(ti)
	if err != nil {
		if halerrors.Is(halerrors.InvalidArgument, err) {
			return nil, nil
		}
		return nil, err
	}
	if bi.Genome().Index() == anchor.Index() {
		return []position{{bot: bi}}, nil
	}

	parentTop, err := segiter.ToParseUp(bi)
	if err != nil {
		return nil, err
	}
	var ring []int64
	if traverseDupes {
		ring, err = parentTop.Genome().Top.ParalogyRing(parentTop.ArrayIndex())
		if err != nil {
			return nil, err
		}
	} else {
		ring = []int64{parentTop.ArrayIndex()}
	}

	var results []position
	for _, idx := range ring {
		candidate := parentTop
		if idx != parentTop.ArrayIndex() {
			candidate, err = segiter.NewTopIterator(parentTop.Genome(), idx)
			if err != nil {
				return nil, err
			}
		}
		sub, err := walkUp(candidate, anchor, traverseDupes)
		if err != nil {
			return nil, err
		}
		results = append(results, sub...)
	}
	return results, nil
}

// walkDown descends from pos (positioned at the MRCA) along the fixed
// path to the target genome. The path between any two genomes is
// unique, so unlike walkUp this never branches. An empty path means
// target == MRCA, so pos (top or bottom) is itself the answer.
func walkDown(pos position, path []*genome.Genome) (*position, error) {
	cur := pos
	for _, next := range path {
		ti, err := cur.descendTo(next)
		if err != nil {
			if halerrors.Is(halerrors.InvalidArgument, err) {
				return nil, nil
			}
			return nil, err
		}
		cur = position{top: ti}
	}
	return &cur, nil
}

// CoalesceAdjacent fuses runs of Segments that are contiguous on both
// source and target coordinates and share orientation into single wider
// Segments, per the Design Note on `extractSegment`'s two cut sets.
// segs must already be in source order.
func CoalesceAdjacent(segs []Segment) []Segment {
	if len(segs) == 0 {
		return nil
	}
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.TargetGenome.Index() == last.TargetGenome.Index() &&
			s.SourceGenome.Index() == last.SourceGenome.Index() &&
			s.Reversed == last.Reversed &&
			s.SourceIdx == last.SourceIdx+1 &&
			contiguousOnTarget(*last, s) {
			last.Length += s.Length
			if s.Reversed {
				last.Start = s.Start
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func contiguousOnTarget(last, next Segment) bool {
	if !next.Reversed {
		return next.TargetIdx == last.TargetIdx+1
	}
	return next.TargetIdx == last.TargetIdx-1
}
