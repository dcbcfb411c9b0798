package mapped

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildCousins builds root -> {leafA, leafB}, each with one top segment
// mapping to the same root bottom segment, so mapping leafA's segment to
// leafB should land on leafB's segment via the root.
func buildCousins(t *testing.T) *genome.Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 2)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 10, TopParseIdx: segment.NullIndex,
		Children: []segment.BottomChild{{ChildIdx: 0}, {ChildIdx: 0}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	for _, name := range []string{"leafA", "leafB"} {
		lw, err := c.CreateGenome(name, "root", 0.1, 0)
		require.NoError(t, err)
		require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumTop: 1}}))
		require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTAC"))
		require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
		require.NoError(t, lw.SetTopSentinel(10))
		_, err = lw.Finalize()
		require.NoError(t, err)
	}
	return c
}

func TestMapSegmentAcrossCousins(t *testing.T) {
	c := buildCousins(t)
	leafA, err := c.GenomeByName("leafA")
	require.NoError(t, err)
	leafB, err := c.GenomeByName("leafB")
	require.NoError(t, err)

	segs, err := MapSegment(leafA, 0, leafB, false)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "leafB", segs[0].TargetGenome.Name)
	assert.Equal(t, Top, segs[0].TargetKind)
	assert.Equal(t, int64(0), segs[0].TargetIdx)
	assert.Equal(t, int64(10), segs[0].Length)
}

func TestMapSegmentSameGenomeIsIdentity(t *testing.T) {
	c := buildCousins(t)
	leafA, err := c.GenomeByName("leafA")
	require.NoError(t, err)
	segs, err := MapSegment(leafA, 0, leafA, false)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(0), segs[0].TargetIdx)
}

func TestMapSegmentToParentLandsOnBottom(t *testing.T) {
	c := buildCousins(t)
	leafA, err := c.GenomeByName("leafA")
	require.NoError(t, err)
	root, err := c.GenomeByName("root")
	require.NoError(t, err)

	segs, err := MapSegment(leafA, 0, root, false)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "root", segs[0].TargetGenome.Name)
	// root has no top array at all, so this must land on its bottom array.
	assert.Equal(t, Bottom, segs[0].TargetKind)
	assert.Equal(t, int64(0), segs[0].TargetIdx)
}
