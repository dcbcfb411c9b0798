package liftover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildDupLeaf builds root (5 bases) -> leaf (10 bases), leaf carrying
// two top segments both mapping onto root's single bottom segment,
// linked in a paralogy ring -- spec.md §8 scenario 3's topology, built
// on the leaf side so a leaf->root liftover must collapse the
// duplicate back down to one root interval.
func buildDupLeaf(t *testing.T) *genome.Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 5, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTA"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 5, TopParseIdx: segment.NullIndex,
		Children: []segment.BottomChild{{ChildIdx: 0}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("leaf", "root", 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumTop: 2}}))
	require.NoError(t, lw.WriteDNA("chr1", "ACGTAACGTA"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: 1}))
	require.NoError(t, lw.SetTopSegment(1, segment.TopRecord{StartPos: 5, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: 0}))
	require.NoError(t, lw.SetTopSentinel(10))
	_, err = lw.Finalize()
	require.NoError(t, err)
	return c
}

func TestRangeCollapsesDuplicateOntoParent(t *testing.T) {
	c := buildDupLeaf(t)
	out, err := Range(c, "leaf", Interval{Chrom: "chr1", Start: 0, End: 10, Strand: '+'}, "root", Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Interval{Chrom: "chr1", Start: 0, End: 5, Strand: '+'}, out[0])
}

func TestRangeNoDupesStillReachesParent(t *testing.T) {
	c := buildDupLeaf(t)
	out, err := Range(c, "leaf", Interval{Chrom: "chr1", Start: 0, End: 5, Strand: '+'}, "root", Options{NoDupes: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Interval{Chrom: "chr1", Start: 0, End: 5, Strand: '+'}, out[0])
}

func TestRangeInvalidInterval(t *testing.T) {
	c := buildDupLeaf(t)
	_, err := Range(c, "leaf", Interval{Chrom: "chr1", Start: 5, End: 2}, "root", Options{})
	require.Error(t, err)
}

func TestRangeReversedParentFlipsStrand(t *testing.T) {
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 10, TopParseIdx: segment.NullIndex,
		Children: []segment.BottomChild{{ChildIdx: 0, Reversed: true}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("leaf", "root", 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumTop: 1}}))
	require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, ParentReversed: true, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSentinel(10))
	_, err = lw.Finalize()
	require.NoError(t, err)

	out, err := Range(c, "leaf", Interval{Chrom: "chr1", Start: 0, End: 10, Strand: '+'}, "root", Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, byte('-'), out[0].Strand)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(10), out[0].End)
}
