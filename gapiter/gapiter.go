// Package gapiter implements the gapped-segment iterators of spec.md
// §4.F: a cursor over a *run* of top (or bottom) segments that behave
// as one logical segment once short unmapped or discontinuous members
// are tolerated as gaps. It is built directly on package segiter's
// plain cursors, per the "tagged variant over a common movement
// interface" Design Note -- a gapped iterator is not a new kind of
// movement, it's a coarser-grained view over the same array.
package gapiter

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/segiter"
	"github.com/grailbio/hal/segment"
)

// GappedTopIterator covers a maximal run of top segments [leftIdx,
// rightIdx] such that every member that breaks parent continuity is
// shorter than gapThreshold bases.
type GappedTopIterator struct {
	g            *genome.Genome
	leftIdx      int64
	rightIdx     int64
	gapThreshold int64
	numGaps      int64
	numGapBases  int64
}

// NewGappedTopIterator builds the maximal gapped run starting at
// startIdx.
func NewGappedTopIterator(g *genome.Genome, startIdx, gapThreshold int64) (*GappedTopIterator, error) {
	it := &GappedTopIterator{g: g, leftIdx: startIdx, rightIdx: startIdx, gapThreshold: gapThreshold}
	if err := it.extend(); err != nil {
		return nil, err
	}
	return it, nil
}

// extend grows rightIdx as far right as the run's continuity rule
// allows, accumulating gap statistics along the way.
func (it *GappedTopIterator) extend() error {
	anchor, err := it.g.Top.Get(it.leftIdx)
	if err != nil {
		return err
	}
	anchorHasParent := anchor.ParentIdx != segment.NullIndex
	for {
		candidate := it.rightIdx + 1
		if candidate >= it.g.Top.Len() {
			return nil
		}
		candRec, err := it.g.Top.Get(candidate)
		if err != nil {
			return err
		}
		if continuesChain(anchor, anchorHasParent, candRec) {
			it.rightIdx = candidate
			anchor = candRec
			anchorHasParent = true
			continue
		}
		length, err := it.g.Top.Length(candidate)
		if err != nil {
			return err
		}
		if length >= it.gapThreshold {
			return nil
		}
		it.numGaps++
		it.numGapBases += length
		it.rightIdx = candidate
	}
}

func continuesChain(anchor segment.TopRecord, anchorHasParent bool, cand segment.TopRecord) bool {
	if !anchorHasParent || cand.ParentIdx == segment.NullIndex {
		return false
	}
	if cand.ParentReversed != anchor.ParentReversed {
		return false
	}
	step := int64(1)
	if anchor.ParentReversed {
		step = -1
	}
	return cand.ParentIdx == anchor.ParentIdx+step
}

// GetLeft returns a plain iterator positioned on the run's first
// segment.
func (it *GappedTopIterator) GetLeft() (*segiter.TopIterator, error) {
	return segiter.NewTopIterator(it.g, it.leftIdx)
}

// GetRight returns a plain iterator positioned on the run's last
// segment.
func (it *GappedTopIterator) GetRight() (*segiter.TopIterator, error) {
	return segiter.NewTopIterator(it.g, it.rightIdx)
}

// NumGaps returns the count of segments absorbed into the run as gaps.
func (it *GappedTopIterator) NumGaps() int64 { return it.numGaps }

// NumGapBases returns the total base length of absorbed gap segments.
func (it *GappedTopIterator) NumGapBases() int64 { return it.numGapBases }

// ToRight advances the whole gapped cursor to the next maximal run,
// starting immediately after the current run's right edge.
func (it *GappedTopIterator) ToRight() error {
	next := it.rightIdx + 1
	if next >= it.g.Top.Len() {
		return halerrors.E(halerrors.OutOfRange, "toRight past last gapped run of genome", it.g.Name)
	}
	it.leftIdx = next
	it.rightIdx = next
	it.numGaps = 0
	it.numGapBases = 0
	return it.extend()
}

// GappedBottomIterator is GappedTopIterator's bottom-array twin: runs
// are tracked against one fixed child slot, since a bottom segment's
// continuity is only meaningful relative to one particular child
// genome at a time (spec.md §4.F "optional childIndex for bottom-side").
type GappedBottomIterator struct {
	g            *genome.Genome
	childIndex   int
	leftIdx      int64
	rightIdx     int64
	gapThreshold int64
	numGaps      int64
	numGapBases  int64
}

// NewGappedBottomIterator builds the maximal gapped run starting at
// startIdx, tracked against childIndex.
func NewGappedBottomIterator(g *genome.Genome, startIdx int64, childIndex int, gapThreshold int64) (*GappedBottomIterator, error) {
	it := &GappedBottomIterator{g: g, childIndex: childIndex, leftIdx: startIdx, rightIdx: startIdx, gapThreshold: gapThreshold}
	if err := it.extend(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *GappedBottomIterator) child(rec segment.BottomRecord) (segment.BottomChild, bool) {
	if it.childIndex < 0 || it.childIndex >= len(rec.Children) {
		return segment.BottomChild{}, false
	}
	c := rec.Children[it.childIndex]
	return c, c.ChildIdx != segment.NullIndex
}

func (it *GappedBottomIterator) extend() error {
	anchorRec, err := it.g.Bottom.Get(it.leftIdx)
	if err != nil {
		return err
	}
	anchor, anchorHas := it.child(anchorRec)
	for {
		candidate := it.rightIdx + 1
		if candidate >= it.g.Bottom.Len() {
			return nil
		}
		candRec, err := it.g.Bottom.Get(candidate)
		if err != nil {
			return err
		}
		cand, candHas := it.child(candRec)
		if anchorHas && candHas && cand.Reversed == anchor.Reversed {
			step := int64(1)
			if anchor.Reversed {
				step = -1
			}
			if cand.ChildIdx == anchor.ChildIdx+step {
				it.rightIdx = candidate
				anchor, anchorHas = cand, true
				continue
			}
		}
		if candRec.Length >= it.gapThreshold {
			return nil
		}
		it.numGaps++
		it.numGapBases += candRec.Length
		it.rightIdx = candidate
	}
}

// GetLeft returns a plain iterator positioned on the run's first
// segment.
func (it *GappedBottomIterator) GetLeft() (*segiter.BottomIterator, error) {
	return segiter.NewBottomIterator(it.g, it.leftIdx)
}

// GetRight returns a plain iterator positioned on the run's last
// segment.
func (it *GappedBottomIterator) GetRight() (*segiter.BottomIterator, error) {
	return segiter.NewBottomIterator(it.g, it.rightIdx)
}

// NumGaps returns the count of segments absorbed into the run as gaps.
func (it *GappedBottomIterator) NumGaps() int64 { return it.numGaps }

// NumGapBases returns the total base length of absorbed gap segments.
func (it *GappedBottomIterator) NumGapBases() int64 { return it.numGapBases }

// ToRight advances to the next maximal run.
func (it *GappedBottomIterator) ToRight() error {
	next := it.rightIdx + 1
	if next >= it.g.Bottom.Len() {
		return halerrors.E(halerrors.OutOfRange, "toRight past last gapped run of genome", it.g.Name)
	}
	it.leftIdx = next
	it.rightIdx = next
	it.numGaps = 0
	it.numGapBases = 0
	return it.extend()
}
