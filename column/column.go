// Package column implements the column iterator of spec.md §4.H: a
// coordinated multi-genome traversal that walks one reference sequence
// base by base, emitting at each position every homologous base
// reachable in a target set of genomes. It is a front over the
// mapped-segment engine (component G) rather than a new traversal
// primitive: spec.md's own column-iterator law ("every (G', p') emitted
// in the same column satisfies the homology relation derivable by
// independent up/down walk via mappedSegments(G→G')") licenses building
// each column directly from one MapSegment call per target, exactly as
// implemented below.
package column

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/mapped"
	"github.com/grailbio/hal/segiter"
	"github.com/grailbio/hal/segment"
)

// Entry is one genome's contribution to a column: the segment array
// index it was found on, its genome-global base position, and its
// orientation relative to the reference base.
type Entry struct {
	ArrayIndex int64
	Pos        int64
	Reversed   bool
}

// Column is the tuple spec.md §3 calls "Column": the homologous
// positions found across every target genome at one reference base,
// keyed by sequence rather than by genome since a genome may, in
// principle, carry more than one sequence through the same traversal.
type Column struct {
	Position int64 // reference-genome-relative (not sequence-relative) position
	// Order is traversal order: the reference sequence first, then one
	// entry per mapped segment found, targets taken in Options.Targets
	// order (catalog order when Targets is nil). Per spec.md §4.H this is
	// insertion order, not sorted.
	Order     []*genome.Sequence
	Sequences map[*genome.Sequence][]Entry
	Genomes   map[*genome.Sequence]*genome.Genome
}

// Options configures an Iterator. Targets nil means every genome
// reachable from the reference's catalog.
type Options struct {
	Targets       []*genome.Genome
	GapThreshold  int64
	Start, Last   int64 // sequence-relative range [Start, Last); Last == 0 means the whole sequence
	NoDupes       bool
	NoAncestors   bool
	ReverseStrand bool
	Unique        bool
}

// Iterator walks a reference sequence's bases, re-deriving the column at
// each one via the mapped-segment engine.
type Iterator struct {
	ref     *genome.Genome
	refSeq  genome.Sequence
	pos     int64 // genome-relative
	end     int64 // genome-relative, exclusive
	targets []*genome.Genome
	opts    Options
}

// NewIterator builds a column iterator starting at refSeq's base
// opts.Start.
func NewIterator(ref *genome.Genome, refSeq genome.Sequence, opts Options) (*Iterator, error) {
	if ref.Top == nil {
		return nil, halerrors.E(halerrors.InvalidArgument, "genome", ref.Name, "has no top array to use as a column iterator reference")
	}
	last := opts.Last
	if last == 0 {
		last = refSeq.Length
	}
	if opts.Start < 0 || last > refSeq.Length || opts.Start >= last {
		return nil, halerrors.E(halerrors.OutOfRange, "invalid column range", opts.Start, last, "for sequence", refSeq.Name)
	}
	targets := opts.Targets
	if targets == nil {
		targets = ref.Catalog().Genomes()
	}
	return &Iterator{
		ref: ref, refSeq: refSeq,
		pos: refSeq.Start + opts.Start, end: refSeq.Start + last,
		targets: targets, opts: opts,
	}, nil
}

// LastColumn reports whether the iterator has consumed its range: the
// current column is the final one to be emitted.
func (it *Iterator) LastColumn() bool { return it.pos >= it.end-1 }

// ToRight advances to the next reference position.
func (it *Iterator) ToRight() error {
	if it.pos+1 >= it.end {
		return halerrors.E(halerrors.OutOfRange, "toRight past last column of sequence", it.refSeq.Name)
	}
	it.pos++
	return nil
}

// Column computes the homology column at the iterator's current
// position.
func (it *Iterator) Column() (Column, error) {
	refTi, err := segiter.ToSiteTop(it.ref, it.pos, true)
	if err != nil {
		return Column{}, err
	}
	arrayIdx := refTi.ArrayIndex()
	segStart, err := it.ref.Top.StartPosition(arrayIdx)
	if err != nil {
		return Column{}, err
	}
	offset := it.pos - segStart
	if it.opts.ReverseStrand {
		if err := refTi.ToReverse(); err != nil {
			return Column{}, err
		}
	}

	col := Column{
		Position:  it.pos,
		Sequences: make(map[*genome.Sequence][]Entry),
		Genomes:   make(map[*genome.Sequence]*genome.Genome),
	}
	col.push(&it.refSeq, it.ref, Entry{ArrayIndex: arrayIdx, Pos: it.pos, Reversed: refTi.Reversed()})

	for _, target := range it.targets {
		if target.Index() == it.ref.Index() {
			continue
		}
		if it.opts.NoAncestors && isAncestor(target, it.ref) {
			continue
		}
		segs, err := mapped.MapSegment(it.ref, arrayIdx, target, !it.opts.NoDupes)
		if err != nil {
			return Column{}, err
		}
		for _, seg := range segs {
			if it.opts.Unique && seg.TargetKind == mapped.Top && !isCanonicalTarget(seg) {
				continue
			}
			// seg spans the whole homologous segment; recover the base
			// that corresponds to offset within it, same as
			// liftover.liftSegment: the offset runs forward from seg.Start
			// when orientation matches, backward from seg's end otherwise.
			var tgtPos int64
			if !seg.Reversed {
				tgtPos = seg.Start + offset
			} else {
				tgtPos = seg.Start + (seg.Length - (offset + 1))
			}
			seq, err := seg.TargetGenome.SequenceBySite(tgtPos)
			if err != nil {
				return Column{}, err
			}
			col.push(&seq, seg.TargetGenome, Entry{ArrayIndex: seg.TargetIdx, Pos: tgtPos, Reversed: seg.Reversed})
		}
	}
	return col, nil
}

func (c *Column) push(seq *genome.Sequence, g *genome.Genome, e Entry) {
	if _, ok := c.Sequences[seq]; !ok {
		c.Order = append(c.Order, seq)
		c.Genomes[seq] = g
	}
	c.Sequences[seq] = append(c.Sequences[seq], e)
}

// isAncestor reports whether a is a strict ancestor of b.
func isAncestor(a, b *genome.Genome) bool {
	for cur := b.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Index() == a.Index() {
			return true
		}
	}
	return false
}

// isCanonicalTarget reports whether seg, a top-kind mapped segment,
// lands on the paralog its parent's childIdx points to (spec.md's
// "Canonical paralog"), used to dedup paralogy-ring branches under
// unique=true.
func isCanonicalTarget(seg mapped.Segment) bool {
	target := seg.TargetGenome
	parent := target.Parent()
	if parent == nil {
		return true
	}
	rec, err := target.Top.Get(seg.TargetIdx)
	if err != nil || rec.ParentIdx < 0 {
		return true
	}
	parentRec, err := parent.Bottom.Get(rec.ParentIdx)
	if err != nil {
		return true
	}
	slot := -1
	for i, idx := range parent.ChildrenIdx {
		if idx == target.Index() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return true
	}
	return segment.IsCanonical(parentRec, slot, seg.TargetIdx)
}
