package lod

import (
	"sort"

	"github.com/biogo/store/llrb"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
)

// addTelomeres runs spec.md §4.J step 2: a zero-length sentinel segment
// immediately before every sequence's first base and one immediately
// after its last, so every per-sequence adjacency chain is closed at
// both ends. Every other LodSegment.Pos in this package is a
// genome-global coordinate (matching segiter/mapped's convention), so
// telomeres are placed at the sequence's genome-global boundaries
// (seq.Start and seq.Start+seq.Length) rather than spec.md's literal
// sequence-local "-1 / sequenceLength", which would otherwise collide
// with genome-global positions for every sequence but the first.
func (g *Graph) addTelomeres() {
	add := func(gm *genome.Genome) {
		for seqIdx, seq := range gm.Sequences {
			g.blocks = append(g.blocks, newTelomere(gm, seqIdx, seq.Start).Block)
			g.blocks = append(g.blocks, newTelomere(gm, seqIdx, seq.Start+seq.Length).Block)
		}
	}
	add(g.parent)
	for _, c := range g.children {
		add(c)
	}
}

// posItem is the llrb.Comparable wrapping one segment's position within
// its sequence's ordered set, grounded on the teacher's
// encoding/bampair/shard_info.go use of llrb.Tree for an ordered index.
type posItem struct {
	pos int64
	seg *LodSegment
}

func (p posItem) Compare(c llrb.Comparable) int {
	o := c.(posItem)
	if p.pos < o.pos {
		return -1
	}
	if p.pos > o.pos {
		return 1
	}
	return 0
}

// buildChains runs spec.md §4.J step 3's second half: every accepted
// (sequence, position, reversed) segment is inserted into the
// per-sequence sorted set of segments.
func (g *Graph) buildChains() error {
	trees := make(map[chainKey]*llrb.Tree)
	for _, b := range g.blocks {
		for _, seg := range b.Segments {
			key := chainKey{genomeIdx: seg.Genome.Index(), seqIdx: seg.SeqIdx}
			t, ok := trees[key]
			if !ok {
				t = &llrb.Tree{}
				trees[key] = t
			}
			t.Insert(posItem{pos: seg.Pos, seg: seg})
		}
	}
	for key, t := range trees {
		var ordered []*LodSegment
		t.Do(func(c llrb.Comparable) bool {
			ordered = append(ordered, c.(posItem).seg)
			return false
		})
		g.chains[key] = ordered
	}
	return nil
}

// linkAdjacencies runs spec.md §4.J step 4: walking each per-sequence
// sorted set and linking consecutive segments head-to-tail.
func (g *Graph) linkAdjacencies() {
	for _, chain := range g.chains {
		for i := 0; i+1 < len(chain); i++ {
			a, b := chain[i], chain[i+1]
			gap := b.forwardStart() - a.forwardEnd()
			if !a.Reversed {
				a.Head, a.HeadGap = b, gap
			} else {
				a.Tail, a.TailGap = b, gap
			}
			if !b.Reversed {
				b.Tail, b.TailGap = a, gap
			} else {
				b.Head, b.HeadGap = a, gap
			}
		}
	}
}

// sortedBySize returns non-telomere blocks ordered by descending segment
// count, the order spec.md §4.J step 5 requires for both extension
// passes ("Sort blocks by segment count descending").
func (g *Graph) sortedBySize() []*LodBlock {
	blocks := g.Blocks()
	sort.SliceStable(blocks, func(i, j int) bool { return len(blocks[i].Segments) > len(blocks[j].Segments) })
	return blocks
}

// extend runs spec.md §4.J step 5: pass 1 extends every multi-segment
// block by half its minimum neighbouring adjacency length; pass 2
// greedily extends every block to its (now smaller) minimum remaining
// adjacency length.
func (g *Graph) extend() {
	for _, b := range g.sortedBySize() {
		if len(b.Segments) < 2 {
			continue
		}
		dHead, dTail := minGaps(b)
		growBlock(b, dHead/2, dTail/2)
	}
	for _, b := range g.sortedBySize() {
		dHead, dTail := minGaps(b)
		growBlock(b, dHead, dTail)
	}
}

// minGaps returns the minimum HeadGap and minimum TailGap across b's
// segments -- the "minimum neighbouring adjacency length" spec.md §4.J
// step 5 extends by.
func minGaps(b *LodBlock) (minHead, minTail int64) {
	minHead, minTail = -1, -1
	for _, s := range b.Segments {
		if minHead < 0 || s.HeadGap < minHead {
			minHead = s.HeadGap
		}
		if minTail < 0 || s.TailGap < minTail {
			minTail = s.TailGap
		}
	}
	if minHead < 0 {
		minHead = 0
	}
	if minTail < 0 {
		minTail = 0
	}
	return
}

// growBlock extends b by dHead bases at its head end and dTail bases at
// its tail end, adjusting every segment's position (for segments whose
// own orientation puts that end at the lower coordinate) and shrinking
// both this segment's and its neighbour's gap on that side by the same
// amount, so every segment in the block stays equally long.
func growBlock(b *LodBlock, dHead, dTail int64) {
	if dHead <= 0 && dTail <= 0 {
		return
	}
	for _, s := range b.Segments {
		if dHead > 0 {
			if s.Reversed {
				s.Pos -= dHead
			}
			s.HeadGap -= dHead
			if n := s.Head; n != nil {
				if n.Head == s {
					n.HeadGap -= dHead
				} else {
					n.TailGap -= dHead
				}
			}
		}
		if dTail > 0 {
			if !s.Reversed {
				s.Pos -= dTail
			}
			s.TailGap -= dTail
			if n := s.Tail; n != nil {
				if n.Head == s {
					n.HeadGap -= dTail
				} else {
					n.TailGap -= dTail
				}
			}
		}
	}
	b.Length += dHead + dTail
}

// merge runs spec.md §4.J step 6: for every block whose head is
// uniquely head-to-tail adjacent (same segment count, zero-length
// adjacency) to one other non-telomere block, merge the two.
func (g *Graph) merge() error {
	changed := true
	for changed {
		changed = false
		for _, b := range g.Blocks() {
			if b.merged {
				continue
			}
			other, ok := uniqueZeroHeadNeighbor(b)
			if !ok {
				continue
			}
			if err := mergeInto(b, other); err != nil {
				return err
			}
			changed = true
		}
	}
	var live []*LodBlock
	for _, b := range g.blocks {
		if !b.merged {
			live = append(live, b)
		}
	}
	g.blocks = live
	return nil
}

// uniqueZeroHeadNeighbor reports the block every segment of b is
// HeadGap==0 adjacent to, when that block is the same one for every
// segment, has the same segment count, and the adjacency is mutual
// (each partner's Tail points straight back).
func uniqueZeroHeadNeighbor(b *LodBlock) (*LodBlock, bool) {
	if len(b.Segments) == 0 {
		return nil, false
	}
	if b.Segments[0].Head == nil || b.Segments[0].Head.Telomere {
		return nil, false
	}
	other := b.Segments[0].Head.Block
	if other == b || len(other.Segments) != len(b.Segments) {
		return nil, false
	}
	for _, s := range b.Segments {
		if s.HeadGap != 0 || s.Head == nil || s.Head.Block != other {
			return nil, false
		}
		if s.Head.Tail != s || s.Head.TailGap != 0 {
			return nil, false
		}
	}
	return other, true
}

// mergeInto fuses b and its head neighbour into one wider block occupying
// b's Segments slice (other is dropped). Each surviving segment's Pos
// becomes the lower coordinate of the fused range (its own for a forward
// segment, the absorbed neighbour's for a reversed one), and it adopts the
// adjacency beyond the absorbed neighbour.
func mergeInto(b, other *LodBlock) error {
	if len(b.Segments) != len(other.Segments) {
		return halerrors.E(halerrors.Invariant, "lod merge: mismatched segment counts")
	}
	b.Length += other.Length
	for _, s := range b.Segments {
		n := s.Head
		if n == nil || n.Block != other {
			return halerrors.E(halerrors.Invariant, "lod merge: broken head adjacency")
		}
		if s.Reversed {
			s.Pos = n.Pos
		}
		s.Head, s.HeadGap = n.Head, n.HeadGap
		if n.Head != nil {
			if n.Head.Head == n {
				n.Head.HeadGap = n.HeadGap
				// n.Head.Head already points at n; repoint to s.
				n.Head.Head = s
			} else {
				n.Head.TailGap = n.HeadGap
				n.Head.Tail = s
			}
		}
		s.Block = b
		n.dead = true
	}
	other.merged = true
	return nil
}
