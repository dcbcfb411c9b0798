// Package segiter implements the segment iterators of spec.md §4.E: a
// single movement interface shared by top- and bottom-segment cursors,
// per the Design Note "Polymorphic iterators — replace with tagged
// variants over a common movement interface {toLeft, toRight, toReverse,
// slice, toSite, startPos, length, reversed, genome}". Top and bottom
// variants are separate concrete types (TopIterator, BottomIterator)
// rather than one interface hierarchy, since Go has no use for the
// class hierarchy the source used polymorphism to avoid duplicating —
// the two types share no state, only the same method names.
package segiter

import (
	"sort"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/segment"
)

// TopIterator is a cursor over one genome's top-segment array. Its
// visible range is [startOffset, endOffset) measured from the
// segment's forward-coordinate start, independent of reversed: flipping
// reversed changes how bases are read, not where the window sits.
type TopIterator struct {
	g                      *genome.Genome
	idx                    int64
	startOffset, endOffset int64
	reversed               bool
}

// NewTopIterator positions a cursor on top segment idx of g, covering
// the whole segment.
func NewTopIterator(g *genome.Genome, idx int64) (*TopIterator, error) {
	length, err := g.Top.Length(idx)
	if err != nil {
		return nil, err
	}
	return &TopIterator{g: g, idx: idx, endOffset: length}, nil
}

func (it *TopIterator) segLength() (int64, error) { return it.g.Top.Length(it.idx) }

// Genome returns the genome this cursor walks.
func (it *TopIterator) Genome() *genome.Genome { return it.g }

// ArrayIndex returns the underlying top-segment array index.
func (it *TopIterator) ArrayIndex() int64 { return it.idx }

// Reversed reports the cursor's current orientation.
func (it *TopIterator) Reversed() bool { return it.reversed }

// Length returns the visible range's length in bases.
func (it *TopIterator) Length() int64 { return it.endOffset - it.startOffset }

// StartPos returns the visible range's genome-global start position.
func (it *TopIterator) StartPos() (int64, error) {
	segStart, err := it.g.Top.StartPosition(it.idx)
	if err != nil {
		return 0, err
	}
	return segStart + it.startOffset, nil
}

// AtEnd reports whether the cursor has advanced past the last segment.
func (it *TopIterator) AtEnd() bool { return it.idx >= it.g.Top.Len() }

// Record returns the underlying top record.
func (it *TopIterator) Record() (segment.TopRecord, error) { return it.g.Top.Get(it.idx) }

// ToRight advances to the next segment, or -- if the cursor's visible
// range is a partial prefix of the current segment -- slices to the
// remaining suffix first, optionally cut short at rightCutoff bases
// from the current visible end (0 means uncut).
func (it *TopIterator) ToRight(rightCutoff int64) error {
	segLen, err := it.segLength()
	if err != nil {
		return err
	}
	if it.endOffset < segLen {
		newEnd := segLen
		if rightCutoff > 0 && it.endOffset+rightCutoff < newEnd {
			newEnd = it.endOffset + rightCutoff
		}
		it.startOffset, it.endOffset = it.endOffset, newEnd
		return nil
	}
	if it.idx >= it.g.Top.Len()-1 {
		return halerrors.E(halerrors.OutOfRange, "toRight past last top segment of genome", it.g.Name)
	}
	it.idx++
	newLen, err := it.segLength()
	if err != nil {
		return err
	}
	it.startOffset = 0
	it.endOffset = newLen
	if rightCutoff > 0 && rightCutoff < newLen {
		it.endOffset = rightCutoff
	}
	return nil
}

// ToLeft is ToRight's mirror: it slices to the unseen prefix of the
// current segment, or moves to the previous segment.
func (it *TopIterator) ToLeft(leftCutoff int64) error {
	if it.startOffset > 0 {
		newStart := int64(0)
		if leftCutoff > 0 && it.startOffset-leftCutoff > newStart {
			newStart = it.startOffset - leftCutoff
		}
		it.startOffset, it.endOffset = newStart, it.startOffset
		return nil
	}
	if it.idx <= 0 {
		return halerrors.E(halerrors.OutOfRange, "toLeft past first top segment of genome", it.g.Name)
	}
	it.idx--
	newLen, err := it.segLength()
	if err != nil {
		return err
	}
	it.startOffset = 0
	it.endOffset = newLen
	if leftCutoff > 0 && leftCutoff < newLen {
		it.startOffset = newLen - leftCutoff
	}
	return nil
}

// ToReverse flips orientation while preserving the visible base range.
func (it *TopIterator) ToReverse() error {
	it.reversed = !it.reversed
	return nil
}

// Slice trims s bases from the visible range's left and e from its
// right; the spec requires s+e < length so the range never empties.
func (it *TopIterator) Slice(s, e int64) error {
	cur := it.Length()
	if s < 0 || e < 0 || s+e >= cur {
		return halerrors.E(halerrors.InvalidArgument, "slice bounds", s, e, "invalid for length", cur)
	}
	it.startOffset += s
	it.endOffset -= e
	return nil
}

// ToSiteTop binary-searches g's top array to land a cursor on the
// segment containing genome-global position p. When doSlice is true the
// cursor's visible range is narrowed to exactly {p}.
func ToSiteTop(g *genome.Genome, p int64, doSlice bool) (*TopIterator, error) {
	n := g.Top.Len()
	i := sort.Search(int(n), func(i int) bool {
		end, err := g.Top.EndPosition(int64(i))
		if err != nil {
			return true
		}
		return end > p
	})
	if int64(i) >= n {
		return nil, halerrors.E(halerrors.OutOfRange, "position", p, "not covered by any top segment of", g.Name)
	}
	it, err := NewTopIterator(g, int64(i))
	if err != nil {
		return nil, err
	}
	if doSlice {
		start, err := it.StartPos()
		if err != nil {
			return nil, err
		}
		it.startOffset = p - start
		it.endOffset = it.startOffset + 1
	}
	return it, nil
}

// BottomIterator is a cursor over one genome's bottom-segment array.
type BottomIterator struct {
	g                      *genome.Genome
	idx                    int64
	startOffset, endOffset int64
	reversed               bool
}

// NewBottomIterator positions a cursor on bottom segment idx of g,
// covering the whole segment.
func NewBottomIterator(g *genome.Genome, idx int64) (*BottomIterator, error) {
	rec, err := g.Bottom.Get(idx)
	if err != nil {
		return nil, err
	}
	return &BottomIterator{g: g, idx: idx, endOffset: rec.Length}, nil
}

func (it *BottomIterator) segLength() (int64, error) {
	rec, err := it.g.Bottom.Get(it.idx)
	if err != nil {
		return 0, err
	}
	return rec.Length, nil
}

// Genome returns the genome this cursor walks.
func (it *BottomIterator) Genome() *genome.Genome { return it.g }

// ArrayIndex returns the underlying bottom-segment array index.
func (it *BottomIterator) ArrayIndex() int64 { return it.idx }

// Reversed reports the cursor's current orientation.
func (it *BottomIterator) Reversed() bool { return it.reversed }

// Length returns the visible range's length in bases.
func (it *BottomIterator) Length() int64 { return it.endOffset - it.startOffset }

// StartPos returns the visible range's genome-global start position.
func (it *BottomIterator) StartPos() (int64, error) {
	segStart, err := it.g.BottomStartPosition(it.idx)
	if err != nil {
		return 0, err
	}
	return segStart + it.startOffset, nil
}

// Record returns the underlying bottom record.
func (it *BottomIterator) Record() (segment.BottomRecord, error) { return it.g.Bottom.Get(it.idx) }

// ToRight is TopIterator.ToRight's bottom-array twin.
func (it *BottomIterator) ToRight(rightCutoff int64) error {
	segLen, err := it.segLength()
	if err != nil {
		return err
	}
	if it.endOffset < segLen {
		newEnd := segLen
		if rightCutoff > 0 && it.endOffset+rightCutoff < newEnd {
			newEnd = it.endOffset + rightCutoff
		}
		it.startOffset, it.endOffset = it.endOffset, newEnd
		return nil
	}
	if it.idx >= it.g.Bottom.Len()-1 {
		return halerrors.E(halerrors.OutOfRange, "toRight past last bottom segment of genome", it.g.Name)
	}
	it.idx++
	newLen, err := it.segLength()
	if err != nil {
		return err
	}
	it.startOffset = 0
	it.endOffset = newLen
	if rightCutoff > 0 && rightCutoff < newLen {
		it.endOffset = rightCutoff
	}
	return nil
}

// ToLeft is TopIterator.ToLeft's bottom-array twin.
func (it *BottomIterator) ToLeft(leftCutoff int64) error {
	if it.startOffset > 0 {
		newStart := int64(0)
		if leftCutoff > 0 && it.startOffset-leftCutoff > newStart {
			newStart = it.startOffset - leftCutoff
		}
		it.startOffset, it.endOffset = newStart, it.startOffset
		return nil
	}
	if it.idx <= 0 {
		return halerrors.E(halerrors.OutOfRange, "toLeft past first bottom segment of genome", it.g.Name)
	}
	it.idx--
	newLen, err := it.segLength()
	if err != nil {
		return err
	}
	it.startOffset = 0
	it.endOffset = newLen
	if leftCutoff > 0 && leftCutoff < newLen {
		it.startOffset = newLen - leftCutoff
	}
	return nil
}

// ToReverse flips orientation while preserving the visible base range.
func (it *BottomIterator) ToReverse() error {
	it.reversed = !it.reversed
	return nil
}

// Slice trims s bases from the visible range's left and e from its right.
func (it *BottomIterator) Slice(s, e int64) error {
	cur := it.Length()
	if s < 0 || e < 0 || s+e >= cur {
		return halerrors.E(halerrors.InvalidArgument, "slice bounds", s, e, "invalid for length", cur)
	}
	it.startOffset += s
	it.endOffset -= e
	return nil
}

// ToSiteBottom is ToSiteTop's bottom-array twin. Bottom records store
// Length, not a start position, so unlike ToSiteTop this can't binary
// search on a monotonic array field directly; it scans, same as
// genome.Genome.BottomStartPosition.
func ToSiteBottom(g *genome.Genome, p int64, doSlice bool) (*BottomIterator, error) {
	n := g.Bottom.Len()
	var pos int64
	i := int(n)
	for b := int64(0); b < n; b++ {
		rec, err := g.Bottom.Get(b)
		if err != nil {
			return nil, err
		}
		if pos+rec.Length > p {
			i = int(b)
			break
		}
		pos += rec.Length
	}
	if i >= int(n) {
		return nil, halerrors.E(halerrors.OutOfRange, "position", p, "not covered by any bottom segment of", g.Name)
	}
	it, err := NewBottomIterator(g, int64(i))
	if err != nil {
		return nil, err
	}
	if doSlice {
		start, err := it.StartPos()
		if err != nil {
			return nil, err
		}
		it.startOffset = p - start
		it.endOffset = it.startOffset + 1
	}
	return it, nil
}

// ToParent transfers a top cursor to a bottom cursor on its parent
// genome, composing the visible offsets and the parent-reversed flag.
// When the crossing itself is reversed, the visible window is reflected
// about the segment's length first, since a reversed edge reads the
// parent's bases back to front
// relative to the child's. It requires the top segment to have a parent
// (spec.md §4.E).
func ToParent(it *TopIterator) (*BottomIterator, error) {
	rec, err := it.Record()
	if err != nil {
		return nil, err
	}
	if rec.ParentIdx == segment.NullIndex {
		return nil, halerrors.E(halerrors.InvalidArgument, "top segment", it.idx, "of", it.g.Name, "has no parent")
	}
	parent := it.g.Parent()
	startOffset, endOffset := it.startOffset, it.endOffset
	if rec.ParentReversed {
		segLen, err := it.segLength()
		if err != nil {
			return nil, err
		}
		startOffset, endOffset = segLen-it.endOffset, segLen-it.startOffset
	}
	bi := &BottomIterator{g: parent, idx: rec.ParentIdx, startOffset: startOffset, endOffset: endOffset, reversed: it.reversed != rec.ParentReversed}
	return bi, nil
}

// ToChild transfers a bottom cursor to a top cursor on the child genome
// occupying childSlot, composing offsets and orientation, reflecting the
// visible window about the segment's length on a reversed crossing (see
// ToParent). It requires that child slot to be populated.
func ToChild(bi *BottomIterator, childSlot int) (*TopIterator, error) {
	rec, err := bi.Record()
	if err != nil {
		return nil, err
	}
	if childSlot < 0 || childSlot >= len(rec.Children) || rec.Children[childSlot].ChildIdx == segment.NullIndex {
		return nil, halerrors.E(halerrors.InvalidArgument, "bottom segment", bi.idx, "of", bi.g.Name, "has no child at slot", childSlot)
	}
	child := bi.g.Child(childSlot)
	startOffset, endOffset := bi.startOffset, bi.endOffset
	if rec.Children[childSlot].Reversed {
		segLen, err := bi.segLength()
		if err != nil {
			return nil, err
		}
		startOffset, endOffset = segLen-bi.endOffset, segLen-bi.startOffset
	}
	ti := &TopIterator{g: child, idx: rec.Children[childSlot].ChildIdx, startOffset: startOffset, endOffset: endOffset, reversed: bi.reversed != rec.Children[childSlot].Reversed}
	return ti, nil
}

// ToParseUp crosses from a bottom cursor to the top cursor covering the
// same genome-global range, staying within the same genome, via the
// bottom record's TopParseIdx (spec.md §4.E). The returned cursor's
// visible range is clipped to the overlap with the single top segment
// at TopParseIdx; callers needing the full bottom range call ToRight
// repeatedly until it is consumed (parse indices don't guarantee 1:1
// coverage -- a bottom segment's range may span several top segments).
func ToParseUp(bi *BottomIterator) (*TopIterator, error) {
	rec, err := bi.Record()
	if err != nil {
		return nil, err
	}
	ti, err := NewTopIterator(bi.g, rec.TopParseIdx)
	if err != nil {
		return nil, err
	}
	bStart, err := bi.StartPos()
	if err != nil {
		return nil, err
	}
	tStart, err := ti.g.Top.StartPosition(ti.idx)
	if err != nil {
		return nil, err
	}
	tLen, err := ti.g.Top.Length(ti.idx)
	if err != nil {
		return nil, err
	}
	lo := bStart
	if tStart > lo {
		lo = tStart
	}
	hiBottom := bStart + bi.Length()
	hiTop := tStart + tLen
	hi := hiBottom
	if hiTop < hi {
		hi = hiTop
	}
	if hi <= lo {
		return nil, halerrors.E(halerrors.Invariant, "parse-up produced an empty overlap for bottom segment", bi.idx, "of", bi.g.Name)
	}
	ti.startOffset = lo - tStart
	ti.endOffset = hi - tStart
	ti.reversed = bi.reversed
	return ti, nil
}

// ToParseDown is ToParseUp's mirror, crossing top->bottom via
// BottomParseIdx.
func ToParseDown(ti *TopIterator) (*BottomIterator, error) {
	rec, err := ti.Record()
	if err != nil {
		return nil, err
	}
	bi, err := NewBottomIterator(ti.g, rec.BottomParseIdx)
	if err != nil {
		return nil, err
	}
	tStart, err := ti.StartPos()
	if err != nil {
		return nil, err
	}
	bStart, err := ti.g.BottomStartPosition(bi.idx)
	if err != nil {
		return nil, err
	}
	bLen, err := func() (int64, error) {
		r, err := bi.Record()
		if err != nil {
			return 0, err
		}
		return r.Length, nil
	}()
	if err != nil {
		return nil, err
	}
	lo := tStart
	if bStart > lo {
		lo = bStart
	}
	hiTop := tStart + ti.Length()
	hiBottom := bStart + bLen
	hi := hiTop
	if hiBottom < hi {
		hi = hiBottom
	}
	if hi <= lo {
		return nil, halerrors.E(halerrors.Invariant, "parse-down produced an empty overlap for top segment", ti.idx, "of", ti.g.Name)
	}
	bi.startOffset = lo - bStart
	bi.endOffset = hi - bStart
	bi.reversed = ti.reversed
	return bi, nil
}
