// Package halvalidate implements the supplemented "validate checks" of
// SPEC_FULL.md (grounded on original_source/validate/halValidateMain.cpp
// and spec.md §8's quantified invariants): it runs every checkable
// invariant over an open genome.Catalog and collects every violation as
// a halerrors.Invariant-kind error, rather than stopping at the first
// one, so the `validate` CLI can report a complete failure list in one
// pass.
package halvalidate

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/segment"
)

// Catalog runs every genome's checks and returns the concatenation of
// all violations found; a nil/empty result means the catalog is valid.
func Catalog(c *genome.Catalog) []error {
	var out []error
	for _, g := range c.Genomes() {
		out = append(out, Genome(g)...)
	}
	return out
}

// Genome runs spec.md §8's invariants over one genome: segment
// contiguity and positive length, sequence tiling, parent/child
// cross-reference consistency, paralogy-ring closure, and parse-index
// round-trip.
func Genome(g *genome.Genome) []error {
	var out []error
	out = append(out, checkTopContiguity(g)...)
	out = append(out, checkBottomLengths(g)...)
	out = append(out, checkSequenceTiling(g)...)
	out = append(out, checkParentChildConsistency(g)...)
	out = append(out, checkParalogyRings(g)...)
	out = append(out, checkParseIndices(g)...)
	return out
}

func invariant(g *genome.Genome, args ...interface{}) error {
	all := append([]interface{}{"genome", g.Name}, args...)
	return halerrors.E(halerrors.Invariant, all...)
}

// checkTopContiguity verifies every top segment's derived length is
// positive and that segment i+1 starts where segment i ends (spec.md
// §3 "Segments of a genome are contiguous").
func checkTopContiguity(g *genome.Genome) []error {
	var out []error
	if g.Top == nil {
		return nil
	}
	n := g.Top.Len()
	for i := int64(0); i < n; i++ {
		length, err := g.Top.Length(i)
		if err != nil {
			out = append(out, invariant(g, "top segment", i, "length check failed:", err))
			continue
		}
		if length <= 0 {
			out = append(out, invariant(g, "top segment", i, "has non-positive length", length))
		}
		if i > 0 {
			prevEnd, err := g.Top.EndPosition(i - 1)
			if err == nil {
				start, err := g.Top.StartPosition(i)
				if err == nil && prevEnd != start {
					out = append(out, invariant(g, "top segment", i, "does not start where", i-1, "ends:", start, "!=", prevEnd))
				}
			}
		}
	}
	return out
}

// checkBottomLengths verifies every bottom segment has a positive
// Length (spec.md §3/§4.D -- bottom segments store Length explicitly).
func checkBottomLengths(g *genome.Genome) []error {
	var out []error
	if g.Bottom == nil {
		return nil
	}
	n := g.Bottom.Len()
	for i := int64(0); i < n; i++ {
		rec, err := g.Bottom.Get(i)
		if err != nil {
			out = append(out, invariant(g, "bottom segment", i, "read failed:", err))
			continue
		}
		if rec.Length <= 0 {
			out = append(out, invariant(g, "bottom segment", i, "has non-positive length", rec.Length))
		}
	}
	return out
}

// checkSequenceTiling verifies spec.md §3: "sequences tile the genome
// without overlap" and "Sequence length equals the sum of lengths of
// the top segments it owns (equivalently bottom)".
func checkSequenceTiling(g *genome.Genome) []error {
	var out []error
	var pos int64
	var sum int64
	for _, s := range g.Sequences {
		if s.Start != pos {
			out = append(out, invariant(g, "sequence", s.Name, "starts at", s.Start, "expected", pos))
		}
		pos = s.Start + s.Length
		sum += s.Length

		if g.Top != nil {
			var topLen int64
			for i := s.FirstTopIdx; i < s.FirstTopIdx+s.NumTop; i++ {
				l, err := g.Top.Length(i)
				if err == nil {
					topLen += l
				}
			}
			if s.NumTop > 0 && topLen != s.Length {
				out = append(out, invariant(g, "sequence", s.Name, "top segments sum to", topLen, "expected length", s.Length))
			}
		}
		if g.Bottom != nil {
			var botLen int64
			for i := s.FirstBotIdx; i < s.FirstBotIdx+s.NumBot; i++ {
				rec, err := g.Bottom.Get(i)
				if err == nil {
					botLen += rec.Length
				}
			}
			if s.NumBot > 0 && botLen != s.Length {
				out = append(out, invariant(g, "sequence", s.Name, "bottom segments sum to", botLen, "expected length", s.Length))
			}
		}
	}
	if sum != g.SequenceLength() {
		out = append(out, invariant(g, "sequence lengths sum to", sum, "but SequenceLength() is", g.SequenceLength()))
	}
	return out
}

// checkParentChildConsistency verifies spec.md §8: "Every top with a
// non-null parentIdx points at a bottom whose childIdx[childOfG] points
// back."
func checkParentChildConsistency(g *genome.Genome) []error {
	var out []error
	if g.Top == nil || g.IsRoot() {
		return nil
	}
	parent := g.Parent()
	slot := -1
	for i, idx := range parent.ChildrenIdx {
		if idx == g.Index() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return []error{invariant(g, "is not listed among its parent", parent.Name, "'s children")}
	}
	n := g.Top.Len()
	for i := int64(0); i < n; i++ {
		rec, err := g.Top.Get(i)
		if err != nil {
			continue
		}
		if rec.ParentIdx == segment.NullIndex {
			continue
		}
		parentRec, err := parent.Bottom.Get(rec.ParentIdx)
		if err != nil {
			out = append(out, invariant(g, "top segment", i, "parent index", rec.ParentIdx, "unreadable:", err))
			continue
		}
		if slot >= len(parentRec.Children) || parentRec.Children[slot].ChildIdx != i {
			out = append(out, invariant(g, "top segment", i, "parent bottom", rec.ParentIdx, "does not point back at it"))
		}
	}
	return out
}

// checkParalogyRings verifies spec.md §8: "Paralogy is cyclic: starting
// from any t and following nextParalogyIdx returns to t in <= numTops
// steps." segment.TopArray.ParalogyRing already enforces closure
// (surfacing halerrors.Invariant on a non-closing ring); this wraps
// that per top segment so a single corrupt ring doesn't abort the rest
// of the catalog's validation pass.
func checkParalogyRings(g *genome.Genome) []error {
	var out []error
	if g.Top == nil {
		return nil
	}
	n := g.Top.Len()
	for i := int64(0); i < n; i++ {
		if _, err := g.Top.ParalogyRing(i); err != nil {
			out = append(out, invariant(g, "paralogy ring at top segment", i, "invalid:", err))
		}
	}
	return out
}

// checkParseIndices verifies spec.md §8: "Parse-index round-trip: if
// t.bottomParseIdx == b_i then b_i covers t.startPos" and the symmetric
// check for topParseIdx.
func checkParseIndices(g *genome.Genome) []error {
	var out []error
	if g.Top == nil || g.Bottom == nil {
		return nil
	}
	n := g.Top.Len()
	for i := int64(0); i < n; i++ {
		rec, err := g.Top.Get(i)
		if err != nil {
			continue
		}
		if rec.BottomParseIdx == segment.NullIndex {
			continue
		}
		start, err := g.Top.StartPosition(i)
		if err != nil {
			continue
		}
		botStart, err := g.BottomStartPosition(rec.BottomParseIdx)
		if err != nil {
			out = append(out, invariant(g, "top segment", i, "bottomParseIdx", rec.BottomParseIdx, "unreadable:", err))
			continue
		}
		botRec, err := g.Bottom.Get(rec.BottomParseIdx)
		if err != nil {
			continue
		}
		if start < botStart || start >= botStart+botRec.Length {
			out = append(out, invariant(g, "top segment", i, "bottomParseIdx", rec.BottomParseIdx, "does not cover its start", start))
		}
	}
	var pos int64
	for b := int64(0); b < g.Bottom.Len(); b++ {
		botRec, err := g.Bottom.Get(b)
		if err != nil {
			break
		}
		if botRec.TopParseIdx != segment.NullIndex {
			tStart, err1 := g.Top.StartPosition(botRec.TopParseIdx)
			tEnd, err2 := g.Top.EndPosition(botRec.TopParseIdx)
			if err1 != nil || err2 != nil || pos < tStart || pos >= tEnd {
				out = append(out, invariant(g, "bottom segment", b, "topParseIdx", botRec.TopParseIdx, "does not cover its start", pos))
			}
		}
		pos += botRec.Length
	}
	return out
}
