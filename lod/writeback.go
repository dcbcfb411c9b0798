package lod

import (
	"sort"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// Result is the new coarsened genome level produced by Writeback.
type Result struct {
	Catalog  *genome.Catalog
	Parent   *genome.Genome
	Children []*genome.Genome
}

// Writeback runs spec.md §4.J step 8: it counts segments per sequence in
// the finished graph, declares the new level's dimensions, optionally
// copies DNA, and writes each block as one bottom segment on the parent
// plus one top segment per child carrying a paralogy ring -- grounded on
// genome.GenomeWriter's declare -> write-DNA -> write-segments -> finalize
// order (component B), the same writer the original level's genomes were
// built with.
func (g *Graph) Writeback(dir string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	pageOpts := pagestore.Options{}
	cat, err := genome.Create(dir, pageOpts)
	if err != nil {
		return nil, err
	}

	parentChain := make([][]*LodSegment, len(g.parent.Sequences))
	for seqIdx := range g.parent.Sequences {
		parentChain[seqIdx] = interior(g.chains[chainKey{genomeIdx: g.parent.Index(), seqIdx: seqIdx}])
	}
	childChains := make([][][]*LodSegment, len(g.children))
	for ci, c := range g.children {
		chains := make([][]*LodSegment, len(c.Sequences))
		for seqIdx := range c.Sequences {
			chains[seqIdx] = interior(g.chains[chainKey{genomeIdx: c.Index(), seqIdx: seqIdx}])
		}
		childChains[ci] = chains
	}

	botIndexOf := make(map[*LodSegment]int64)
	var botIdx int64
	for _, chain := range parentChain {
		for _, s := range chain {
			botIndexOf[s] = botIdx
			botIdx++
		}
	}
	topIndexOf := make(map[*LodSegment]int64)
	topIdxByChild := make([]int64, len(g.children))
	for ci, chains := range childChains {
		for _, chain := range chains {
			for _, s := range chain {
				topIndexOf[s] = topIdxByChild[ci]
				topIdxByChild[ci]++
			}
		}
	}

	pw, err := cat.CreateGenome(g.parent.Name, "", g.parent.BranchLength, int64(len(g.children)))
	if err != nil {
		return nil, err
	}
	pSpecs := make([]genome.SeqSpec, len(g.parent.Sequences))
	for i, seq := range g.parent.Sequences {
		pSpecs[i] = genome.SeqSpec{Name: seq.Name, Length: seq.Length, NumBot: int64(len(parentChain[i]))}
	}
	if err := pw.DeclareSequences(pSpecs); err != nil {
		return nil, err
	}
	if opts.CopyDNA && g.parent.DNA != nil {
		if err := copyDNA(pw, g.parent); err != nil {
			return nil, err
		}
	}

	cws := make([]*genome.GenomeWriter, len(g.children))
	for ci, c := range g.children {
		cw, err := cat.CreateGenome(c.Name, g.parent.Name, c.BranchLength, 0)
		if err != nil {
			return nil, err
		}
		specs := make([]genome.SeqSpec, len(c.Sequences))
		for i, seq := range c.Sequences {
			specs[i] = genome.SeqSpec{Name: seq.Name, Length: seq.Length, NumTop: int64(len(childChains[ci][i]))}
		}
		if err := cw.DeclareSequences(specs); err != nil {
			return nil, err
		}
		if opts.CopyDNA && c.DNA != nil {
			if err := copyDNA(cw, c); err != nil {
				return nil, err
			}
		}
		cws[ci] = cw
	}

	// Bottom segments: one per parent-chain entry, one child slot each.
	bi := int64(0)
	for _, chain := range parentChain {
		for _, s := range chain {
			rec := segment.BottomRecord{Length: s.Block.Length, TopParseIdx: segment.NullIndex}
			rec.Children = make([]segment.BottomChild, len(g.children))
			for i := range rec.Children {
				rec.Children[i] = segment.BottomChild{ChildIdx: segment.NullIndex}
			}
			for ci, c := range g.children {
				canon := canonicalChildSegment(s.Block, c)
				if canon == nil {
					continue
				}
				rec.Children[ci] = segment.BottomChild{
					ChildIdx: topIndexOf[canon],
					Reversed: canon.Reversed != s.Reversed,
				}
			}
			if err := pw.SetBottomSegment(bi, rec); err != nil {
				return nil, err
			}
			bi++
		}
	}
	for ci, c := range g.children {
		var cursor int64
		for _, chain := range childChains[ci] {
			for _, s := range chain {
				rec := segment.TopRecord{
					StartPos:        s.Pos,
					BottomParseIdx:  segment.NullIndex,
					NextParalogyIdx: segment.NullIndex,
					ParentIdx:       segment.NullIndex,
				}
				parentSeg := parentSegmentOf(s.Block, g.parent)
				if parentSeg != nil {
					rec.ParentIdx = botIndexOf[parentSeg]
					rec.ParentReversed = s.Reversed != parentSeg.Reversed
				}
				if ring := paralogsOf(s.Block, c); len(ring) > 1 {
					rec.NextParalogyIdx = nextInRing(ring, s, topIndexOf)
				}
				if err := cws[ci].SetTopSegment(cursor, rec); err != nil {
					return nil, err
				}
				cursor++
			}
		}
		if err := cws[ci].SetTopSentinel(c.SequenceLength()); err != nil {
			return nil, err
		}
	}

	pg, err := pw.Finalize()
	if err != nil {
		return nil, err
	}
	resultChildren := make([]*genome.Genome, len(g.children))
	for ci := range g.children {
		cg, err := cws[ci].Finalize()
		if err != nil {
			return nil, err
		}
		resultChildren[ci] = cg
	}
	return &Result{Catalog: cat, Parent: pg, Children: resultChildren}, nil
}

// interior strips a per-sequence chain's leading and trailing telomere
// sentinels, returning only the real (and filler) segments in between.
func interior(chain []*LodSegment) []*LodSegment {
	if len(chain) < 2 {
		return nil
	}
	return chain[1 : len(chain)-1]
}

// canonicalChildSegment returns the first (lowest global top-index order,
// i.e. chain order) segment in block belonging to child, or nil if block
// has none -- the one a BottomRecord child slot points to, per spec.md's
// "Canonical paralog" glossary entry.
func canonicalChildSegment(block *LodBlock, child *genome.Genome) *LodSegment {
	var best *LodSegment
	for _, s := range block.Segments {
		if s.dead || s.Genome.Index() != child.Index() {
			continue
		}
		if best == nil || (s.SeqIdx == best.SeqIdx && s.Pos < best.Pos) || s.SeqIdx < best.SeqIdx {
			best = s
		}
	}
	return best
}

// parentSegmentOf returns block's segment belonging to the parent
// genome, or nil if the block carries no parent position (a lineage-
// specific insertion relative to the parent).
func parentSegmentOf(block *LodBlock, parent *genome.Genome) *LodSegment {
	for _, s := range block.Segments {
		if !s.dead && s.Genome.Index() == parent.Index() {
			return s
		}
	}
	return nil
}

// paralogsOf returns every live segment of block belonging to child,
// ordered by (SeqIdx, Pos) -- the order their NextParalogyIdx ring links
// them in.
func paralogsOf(block *LodBlock, child *genome.Genome) []*LodSegment {
	var out []*LodSegment
	for _, s := range block.Segments {
		if !s.dead && s.Genome.Index() == child.Index() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeqIdx != out[j].SeqIdx {
			return out[i].SeqIdx < out[j].SeqIdx
		}
		return out[i].Pos < out[j].Pos
	})
	return out
}

// nextInRing returns the global top-segment index s's NextParalogyIdx
// should hold, cycling through ring (spec.md "Paralogy ring").
func nextInRing(ring []*LodSegment, s *LodSegment, topIndexOf map[*LodSegment]int64) int64 {
	for i, r := range ring {
		if r == s {
			return topIndexOf[ring[(i+1)%len(ring)]]
		}
	}
	return segment.NullIndex
}

func copyDNA(w *genome.GenomeWriter, src *genome.Genome) error {
	for _, seq := range src.Sequences {
		if seq.Length == 0 {
			continue
		}
		bases, err := src.DNA.Range(seq.Start, seq.Length)
		if err != nil {
			return err
		}
		if err := w.WriteDNA(seq.Name, bases); err != nil {
			return err
		}
	}
	return nil
}
