package lod

// insertFillers runs spec.md §4.J step 7: repeatedly insert new filler
// blocks into every non-zero adjacency gap until every adjacency length
// is zero. A filler is a single-segment, single-sequence block covering
// exactly the unaligned bases between two chain neighbours -- content
// present on only one genome that the sampling pass found no homolog
// for, e.g. a lineage-specific insertion.
func (g *Graph) insertFillers() {
	for key, oldChain := range g.chains {
		chain := liveOf(oldChain)
		newChain := make([]*LodSegment, 0, len(chain))
		for i, s := range chain {
			newChain = append(newChain, s)
			if i+1 >= len(chain) {
				continue
			}
			a, b := s, chain[i+1]
			gap := b.forwardStart() - a.forwardEnd()
			if gap <= 0 {
				continue
			}
			filler := &LodSegment{Genome: a.Genome, SeqIdx: a.SeqIdx, Pos: a.forwardEnd()}
			filler.Block = &LodBlock{Length: gap, Segments: []*LodSegment{filler}}

			// a's forward-direction pointer (Head if a reads forward,
			// Tail if a reads backward) now lands on filler with a zero
			// gap; filler's own pointers are fixed since it is never
			// reversed.
			if !a.Reversed {
				a.Head, a.HeadGap = filler, 0
			} else {
				a.Tail, a.TailGap = filler, 0
			}
			filler.Tail, filler.TailGap = a, 0
			filler.Head, filler.HeadGap = b, 0
			if !b.Reversed {
				b.Tail, b.TailGap = filler, 0
			} else {
				b.Head, b.HeadGap = filler, 0
			}

			g.blocks = append(g.blocks, filler.Block)
			newChain = append(newChain, filler)
		}
		g.chains[key] = newChain
	}
}

func liveOf(chain []*LodSegment) []*LodSegment {
	out := make([]*LodSegment, 0, len(chain))
	for _, s := range chain {
		if !s.dead {
			out = append(out, s)
		}
	}
	return out
}
