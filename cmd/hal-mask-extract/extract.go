package main

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/internal/halflags"
	"github.com/grailbio/hal/synteny"
)

// extractMasked finds every maximal run of soft-masked (lowercase) bases
// in g's sequences and returns them as per-sequence intervals, padded by
// opts.Extend/ExtendPct, following original_source/extract/impl/
// halMaskExtractor.cpp's addMaskedBasesToCache/extendCachedIntervals/
// writeCachedIntervals pipeline: collect masked positions, pad each run
// by a fixed or proportional amount clamped to the sequence bounds, then
// emit one interval per run.
func extractMasked(g *genome.Genome, opts halflags.MaskExtractOpts) ([]synteny.Interval, error) {
	var out []synteny.Interval
	for _, seq := range g.Sequences {
		if seq.Length == 0 {
			continue
		}
		runs, err := maskedRuns(g, seq)
		if err != nil {
			return nil, err
		}
		runs = extendRuns(runs, seq, opts)
		for _, r := range runs {
			out = append(out, synteny.Interval{
				Chrom:  seq.Name,
				Start:  r[0] - seq.Start,
				End:    r[1] - seq.Start,
				Strand: '+',
			})
		}
	}
	return out, nil
}

// maskedRuns returns [start, end) genome-global base ranges of
// consecutive lowercase bases within seq.
func maskedRuns(g *genome.Genome, seq genome.Sequence) ([][2]int64, error) {
	var runs [][2]int64
	var runStart int64 = -1
	for pos := seq.Start; pos < seq.End(); pos++ {
		b, err := g.DNA.Base(pos)
		if err != nil {
			return nil, err
		}
		if isLowerBase(b) {
			if runStart < 0 {
				runStart = pos
			}
			continue
		}
		if runStart >= 0 {
			runs = append(runs, [2]int64{runStart, pos})
			runStart = -1
		}
	}
	if runStart >= 0 {
		runs = append(runs, [2]int64{runStart, seq.End()})
	}
	return runs, nil
}

func extendRuns(runs [][2]int64, seq genome.Sequence, opts halflags.MaskExtractOpts) [][2]int64 {
	if opts.Extend == 0 && opts.ExtendPct == 0 {
		return runs
	}
	out := make([][2]int64, len(runs))
	for i, r := range runs {
		length := r[1] - r[0]
		pad := opts.Extend
		if pad == 0 {
			pad = int64(opts.ExtendPct * float64(length))
		}
		start := r[0] - pad
		if start < seq.Start {
			start = seq.Start
		}
		end := r[1] + pad
		if end > seq.End() {
			end = seq.End()
		}
		out[i] = [2]int64{start, end}
	}
	return mergeOverlapping(out)
}

// mergeOverlapping folds overlapping padded runs together, since
// extending two adjacent runs can make them touch or overlap.
func mergeOverlapping(runs [][2]int64) [][2]int64 {
	if len(runs) == 0 {
		return runs
	}
	out := runs[:1]
	for _, r := range runs[1:] {
		last := &out[len(out)-1]
		if r[0] <= last[1] {
			if r[1] > last[1] {
				last[1] = r[1]
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func isLowerBase(b byte) bool { return b >= 'a' && b <= 'z' }
