package segiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildTree creates a two-genome catalog (root -> leaf) with one
// sequence each, three top segments on the leaf mapping onto two bottom
// segments on the root, exercising parse-index crossing.
func buildTree(t *testing.T) *genome.Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 20, NumBot: 2}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTACGTACGTACGT"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 12, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 0}},
	}))
	require.NoError(t, rw.SetBottomSegment(1, segment.BottomRecord{
		Length: 8, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 2}},
	}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("leaf", "root", 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 20, NumTop: 3}}))
	require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTACGTACGTACGT"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSegment(1, segment.TopRecord{StartPos: 5, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSegment(2, segment.TopRecord{StartPos: 12, ParentIdx: 1, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSentinel(20))
	_, err = lw.Finalize()
	require.NoError(t, err)

	return c
}

func TestTopIteratorForwardAndSlice(t *testing.T) {
	c := buildTree(t)
	leaf, err := c.GenomeByName("leaf")
	require.NoError(t, err)

	it, err := NewTopIterator(leaf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), it.Length())
	start, err := it.StartPos()
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)

	require.NoError(t, it.ToRight(0))
	assert.Equal(t, int64(1), it.ArrayIndex())
	assert.Equal(t, int64(7), it.Length())

	require.NoError(t, it.Slice(2, 1))
	assert.Equal(t, int64(4), it.Length())
}

func TestTopIteratorToReversePreservesRange(t *testing.T) {
	c := buildTree(t)
	leaf, err := c.GenomeByName("leaf")
	require.NoError(t, err)
	it, err := NewTopIterator(leaf, 1)
	require.NoError(t, err)
	before, err := it.StartPos()
	require.NoError(t, err)
	length := it.Length()

	require.NoError(t, it.ToReverse())
	assert.True(t, it.Reversed())
	require.NoError(t, it.ToReverse())
	assert.False(t, it.Reversed())
	after, err := it.StartPos()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, length, it.Length())
}

func TestToSiteTop(t *testing.T) {
	c := buildTree(t)
	leaf, err := c.GenomeByName("leaf")
	require.NoError(t, err)

	it, err := ToSiteTop(leaf, 13, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), it.ArrayIndex())

	sliced, err := ToSiteTop(leaf, 13, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sliced.Length())
	start, err := sliced.StartPos()
	require.NoError(t, err)
	assert.Equal(t, int64(13), start)
}

func TestToParentAndToChild(t *testing.T) {
	c := buildTree(t)
	leaf, err := c.GenomeByName("leaf")
	require.NoError(t, err)

	ti, err := NewTopIterator(leaf, 0)
	require.NoError(t, err)
	bi, err := ToParent(ti)
	require.NoError(t, err)
	assert.Equal(t, "root", bi.Genome().Name)
	assert.Equal(t, int64(0), bi.ArrayIndex())

	back, err := ToChild(bi, 0)
	require.NoError(t, err)
	assert.Equal(t, "leaf", back.Genome().Name)
	assert.Equal(t, int64(0), back.ArrayIndex())
}

func TestToParentMissingFails(t *testing.T) {
	// Every top segment buildTree declares has a parent, and a finalized
	// array is read-only, so the failure path is exercised on a separate
	// genome whose only top segment is written with no parent.
	c, err := genome.Create(t.TempDir(), pagestore.Options{})
	require.NoError(t, err)
	w, err := c.CreateGenome("orphan", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, w.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 5, NumTop: 1}}))
	require.NoError(t, w.WriteDNA("chr1", "ACGTA"))
	require.NoError(t, w.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: segment.NullIndex, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, w.SetTopSentinel(5))
	orphan, err := w.Finalize()
	require.NoError(t, err)
	ti, err := NewTopIterator(orphan, 0)
	require.NoError(t, err)
	rec, err := orphan.Top.Get(0)
	require.NoError(t, err)
	require.Equal(t, segment.NullIndex, rec.ParentIdx)
	_, err = ToParent(ti)
	assert.Error(t, err)
}
