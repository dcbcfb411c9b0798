package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildIdentity builds the spec's "Two-leaf identity" fixture: root R
// length 10 and leaf L with the same sequence, one top segment mapping
// 1-to-1, parentReversed=false.
func buildIdentity(t *testing.T) (*genome.Genome, *genome.Genome) {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("R", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 10, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 0}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("L", "R", 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumTop: 1}}))
	require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSentinel(10))
	_, err = lw.Finalize()
	require.NoError(t, err)

	leaf, err := c.GenomeByName("L")
	require.NoError(t, err)
	root, err := c.GenomeByName("R")
	require.NoError(t, err)
	return leaf, root
}

// buildReversedParent is buildIdentity with parentReversed=true, the
// spec's "Reversed parent" fixture: L[0] must map to R[9].
func buildReversedParent(t *testing.T) (*genome.Genome, *genome.Genome) {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("R", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 10, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 0}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("L", "R", 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 10, NumTop: 1}}))
	require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTAC"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{
		StartPos: 0, ParentIdx: 0, ParentReversed: true, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex,
	}))
	require.NoError(t, lw.SetTopSentinel(10))
	_, err = lw.Finalize()
	require.NoError(t, err)

	leaf, err := c.GenomeByName("L")
	require.NoError(t, err)
	root, err := c.GenomeByName("R")
	require.NoError(t, err)
	return leaf, root
}

func TestColumnIteratorTwoLeafIdentity(t *testing.T) {
	leaf, root := buildIdentity(t)
	seq, err := leaf.SequenceByName("chr1")
	require.NoError(t, err)

	it, err := NewIterator(leaf, seq, Options{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		col, err := it.Column()
		require.NoError(t, err)
		require.Len(t, col.Order, 2)

		// Both genomes have exactly one segment covering the whole
		// sequence, so every column names array index 0 -- it is the
		// entry's Pos, not arrayIndex, that advances with i.
		leafEntries := col.Sequences[col.Order[0]]
		require.Len(t, leafEntries, 1)
		assert.Equal(t, int64(0), leafEntries[0].ArrayIndex)
		assert.Equal(t, int64(i), leafEntries[0].Pos)
		assert.False(t, leafEntries[0].Reversed)
		assert.Equal(t, leaf, col.Genomes[col.Order[0]])

		rootEntries := col.Sequences[col.Order[1]]
		require.Len(t, rootEntries, 1)
		assert.Equal(t, int64(0), rootEntries[0].ArrayIndex)
		assert.Equal(t, int64(i), rootEntries[0].Pos)
		assert.False(t, rootEntries[0].Reversed)
		assert.Equal(t, root, col.Genomes[col.Order[1]])

		if i < 9 {
			assert.False(t, it.LastColumn())
			require.NoError(t, it.ToRight())
		} else {
			assert.True(t, it.LastColumn())
		}
	}
}

// TestColumnIteratorReversedParent covers the spec's "Reversed parent"
// scenario: with parentReversed=true, column at L[0] must map to R[9]
// (and, more generally, L[i] to R[9-i]), exercising the reversed-offset
// path that TestColumnIteratorTwoLeafIdentity's identity mapping cannot.
func TestColumnIteratorReversedParent(t *testing.T) {
	leaf, root := buildReversedParent(t)
	seq, err := leaf.SequenceByName("chr1")
	require.NoError(t, err)

	it, err := NewIterator(leaf, seq, Options{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		col, err := it.Column()
		require.NoError(t, err)
		require.Len(t, col.Order, 2)

		leafEntries := col.Sequences[col.Order[0]]
		require.Len(t, leafEntries, 1)
		assert.Equal(t, int64(i), leafEntries[0].Pos)
		assert.False(t, leafEntries[0].Reversed)
		assert.Equal(t, leaf, col.Genomes[col.Order[0]])

		rootEntries := col.Sequences[col.Order[1]]
		require.Len(t, rootEntries, 1)
		assert.Equal(t, int64(9-i), rootEntries[0].Pos)
		assert.True(t, rootEntries[0].Reversed)
		assert.Equal(t, root, col.Genomes[col.Order[1]])

		if i < 9 {
			require.NoError(t, it.ToRight())
		}
	}
}

func TestColumnIteratorToRightPastEndErrors(t *testing.T) {
	leaf, _ := buildIdentity(t)
	seq, err := leaf.SequenceByName("chr1")
	require.NoError(t, err)
	it, err := NewIterator(leaf, seq, Options{Start: 9})
	require.NoError(t, err)
	assert.True(t, it.LastColumn())
	assert.Error(t, it.ToRight())
}
