// Package liftover implements the supplemented liftover core of
// SPEC_FULL.md, grounded on original_source/liftover/impl/halLiftover.cpp
// and halBlockLiftover.cpp: mapping a BED-style interval on one genome
// onto every homologous interval on a target genome. It sits directly on
// package mapped (component G) -- only BED/PSL text I/O is left external,
// per spec.md §1.
package liftover

import (
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/mapped"
	"github.com/grailbio/hal/segiter"
	"github.com/grailbio/hal/synteny"
)

// Interval is a half-open [Start, End) range on one named sequence of a
// genome, oriented by Strand ('+' or '-').
type Interval = synteny.Interval

// Options configures one Range call, mirroring halLiftover.h's knobs.
type Options struct {
	// NoDupes disables branching across paralogy rings: only the
	// canonical path through each duplication is followed.
	NoDupes bool
	// CoalescenceLimit caps how far apart two same-strand target
	// intervals may sit and still merge into one block, per the Open
	// Question resolution in package synteny's doc comment. Zero means
	// only contiguous/overlapping intervals merge.
	CoalescenceLimit int64
}

// Range lifts one interval on srcGenome's named sequence onto every
// homologous interval on tgtGenome, merging adjacent results per
// Options.CoalescenceLimit.
func Range(cat *genome.Catalog, srcGenome string, src Interval, tgtGenome string, opts Options) ([]Interval, error) {
	from, err := cat.GenomeByName(srcGenome)
	if err != nil {
		return nil, err
	}
	to, err := cat.GenomeByName(tgtGenome)
	if err != nil {
		return nil, err
	}
	seq, err := from.SequenceByName(src.Chrom)
	if err != nil {
		return nil, err
	}
	if src.Start < 0 || src.End > seq.Length || src.Start >= src.End {
		return nil, halerrors.E(halerrors.InvalidArgument, "invalid liftover range", src.Start, src.End, "for sequence", src.Chrom)
	}
	strand := src.Strand
	if strand == 0 {
		strand = '+'
	}

	rangeStart := seq.Start + src.Start
	rangeEnd := seq.Start + src.End

	var out []Interval
	ti, err := segiter.ToSiteTop(from, rangeStart, false)
	if err != nil {
		return nil, err
	}
	for {
		segStart, err := ti.StartPos()
		if err != nil {
			return nil, err
		}
		segLen := ti.Length()
		segEnd := segStart + segLen

		oStart := maxInt64(segStart, rangeStart)
		oEnd := minInt64(segEnd, rangeEnd)
		if oStart < oEnd {
			mapped, err := liftSegment(from, ti.ArrayIndex(), to, segStart, segLen, oStart, oEnd, strand, !opts.NoDupes)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped...)
		}

		if segEnd >= rangeEnd {
			break
		}
		if err := ti.ToRight(0); err != nil {
			break
		}
	}

	return synteny.MergeAdjacentIntervals(out, opts.CoalescenceLimit), nil
}

func liftSegment(from *genome.Genome, idx int64, to *genome.Genome, segStart, segLen, oStart, oEnd int64, srcStrand byte, traverseDupes bool) ([]Interval, error) {
	mappedSegs, err := mapped.MapSegment(from, idx, to, traverseDupes)
	if err != nil {
		return nil, err
	}
	offset := oStart - segStart
	overlapLen := oEnd - oStart

	var out []Interval
	for _, seg := range mappedSegs {
		var subStart int64
		if !seg.Reversed {
			subStart = seg.Start + offset
		} else {
			subStart = seg.Start + (segLen - (offset + overlapLen))
		}
		tgtSeq, err := seg.TargetGenome.SequenceBySite(subStart)
		if err != nil {
			continue
		}
		strand := srcStrand
		if seg.Reversed {
			strand = flipStrand(strand)
		}
		out = append(out, Interval{
			Chrom:  tgtSeq.Name,
			Start:  subStart - tgtSeq.Start,
			End:    subStart - tgtSeq.Start + overlapLen,
			Strand: strand,
		})
	}
	return out, nil
}

func flipStrand(s byte) byte {
	if s == '+' {
		return '-'
	}
	return '+'
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
