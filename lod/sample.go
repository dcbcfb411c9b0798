package lod

import (
	"encoding/binary"

	"github.com/minio/highwayhash"

	"github.com/grailbio/hal/column"
	"github.com/grailbio/hal/genome"
)

// columnHashKey is the content-dedup pre-filter key for a sampled column:
// the same (genome, array index) set hashed to a fixed-size key, following
// the teacher's own highwayhash.Sum grouping idiom
// (fusion/postprocess.go's groupCandidatesByGenePair), which likewise
// folds a variable-length list of integer identifiers into one hashBuf
// before hashing so equal sets collapse to equal keys regardless of which
// reference genome first sampled them.
type columnHashKey = [highwayhash.Size]uint8

var zeroHashSeed columnHashKey

// sample runs spec.md §4.J step 1: for every genome in the subset, walk
// each sequence sampling roughly every Step bases, probing a window
// around each target position for the best-scoring column, and turns
// each accepted column into one LodBlock.
func (g *Graph) sample(grandParent *genome.Genome) error {
	refs := append([]*genome.Genome{g.parent}, g.children...)
	targets := refs
	if grandParent != nil {
		targets = append(append([]*genome.Genome{}, refs...), grandParent)
	}

	seen := make(map[columnHashKey]bool)
	for _, ref := range refs {
		if ref.Top == nil {
			// Root of the whole alignment tree: it has no top array to
			// seed a column.Iterator, so it is only ever reached as a
			// target from another reference's column, never a reference
			// itself.
			continue
		}
		for seqIdx, seq := range ref.Sequences {
			if seq.Length == 0 {
				continue
			}
			minLen := int64(float64(g.opts.Step) * g.opts.MinSeqFrac)
			if !g.opts.AllSequences && seq.Length < minLen {
				continue
			}
			if err := g.sampleSequence(ref, seqIdx, seq, targets, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) sampleSequence(ref *genome.Genome, seqIdx int, seq genome.Sequence, targets []*genome.Genome, seen map[columnHashKey]bool) error {
	step := g.opts.Step
	if step <= 0 {
		step = 1
	}
	half := step / 2
	if half < 1 {
		half = 1
	}
	numProbes := int(float64(half*2) * g.opts.ProbeFrac)
	if numProbes < 1 {
		numProbes = 1
	}

	for target := int64(0); target < seq.Length; target += step {
		bestScore := -1
		var bestCol column.Column
		haveBest := false

		stride := (half * 2) / int64(numProbes)
		if stride < 1 {
			stride = 1
		}
		for probe := -half; probe <= half; probe += stride {
			p := target + probe
			if p < 0 || p >= seq.Length {
				continue
			}
			it, err := column.NewIterator(ref, seq, column.Options{Targets: targets, GapThreshold: g.opts.GapThreshold, Start: p, Last: p + 1})
			if err != nil {
				continue
			}
			col, err := it.Column()
			if err != nil {
				continue
			}
			score := len(col.Order)
			if score > bestScore {
				bestScore = score
				bestCol = col
				haveBest = true
			}
		}
		if !haveBest || bestScore < 2 {
			// A column naming only the reference itself carries no
			// homology information worth a block.
			continue
		}
		key := columnHash(bestCol)
		if seen[key] {
			continue
		}
		seen[key] = true
		g.addBlockFromColumn(bestCol)
	}
	return nil
}

// columnHash identifies a column by its set of (genome, array index)
// entries, hashed with highwayhash so the same homology group sampled
// from two different reference genomes collapses to a single block
// pre-filter key, following the teacher's own grouping idiom
// (fusion/postprocess.go's groupCandidatesByGenePair, which likewise
// folds a variable-length list of integer identifiers into one byte
// buffer before hashing it to a fixed-size map key).
func columnHash(col column.Column) columnHashKey {
	buf := make([]byte, 0, 16*len(col.Order))
	var tmp [8]byte
	for _, seq := range col.Order {
		binary.LittleEndian.PutUint64(tmp[:], uint64(col.Genomes[seq].Index()))
		buf = append(buf, tmp[:]...)
		for _, e := range col.Sequences[seq] {
			binary.LittleEndian.PutUint64(tmp[:], uint64(e.ArrayIndex))
			buf = append(buf, tmp[:]...)
		}
	}
	return highwayhash.Sum(buf, zeroHashSeed[:])
}

func (g *Graph) addBlockFromColumn(col column.Column) {
	block := &LodBlock{Length: 1}
	for _, seq := range col.Order {
		gm := col.Genomes[seq]
		if !inSubset(gm, g.parent, g.children) {
			continue
		}
		seqIdx := sequenceIndex(gm, seq)
		for _, e := range col.Sequences[seq] {
			seg := &LodSegment{Genome: gm, SeqIdx: seqIdx, Pos: e.Pos, Reversed: e.Reversed, Block: block}
			block.Segments = append(block.Segments, seg)
		}
	}
	if len(block.Segments) > 0 {
		g.blocks = append(g.blocks, block)
	}
}

func inSubset(gm *genome.Genome, parent *genome.Genome, children []*genome.Genome) bool {
	if gm.Index() == parent.Index() {
		return true
	}
	for _, c := range children {
		if gm.Index() == c.Index() {
			return true
		}
	}
	return false
}

// sequenceIndex finds seq's position in gm.Sequences by name: column's
// Column.Order carries pointers into copies made along the mapped-segment
// walk, not into the catalog's own Sequences slice, so identity
// comparison would never match.
func sequenceIndex(gm *genome.Genome, seq *genome.Sequence) int {
	for i := range gm.Sequences {
		if gm.Sequences[i].Name == seq.Name {
			return i
		}
	}
	return -1
}
