package genome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

func writeLeaf(t *testing.T, c *Catalog, name, parent string, seq string) *Genome {
	t.Helper()
	w, err := c.CreateGenome(name, parent, 0.1, 0)
	require.NoError(t, err)
	require.NoError(t, w.DeclareSequences([]SeqSpec{{Name: "chr1", Length: int64(len(seq)), NumTop: 1, NumBot: 0}}))
	require.NoError(t, w.WriteDNA("chr1", seq))
	require.NoError(t, w.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: segment.NullIndex, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, w.SetTopSentinel(int64(len(seq))))
	g, err := w.Finalize()
	require.NoError(t, err)
	return g
}

func TestCreateGenomeAndReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]SeqSpec{{Name: "chr1", Length: 8, NumTop: 0, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGT"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length:        8,
		TopParseIdx:   segment.NullIndex,
		FirstChildIdx: 0,
		Children:      []segment.BottomChild{{ChildIdx: 0}},
	}))
	root, err := rw.Finalize()
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	leaf := writeLeaf(t, c, "leaf", "root", "ACGTACGT")
	assert.False(t, leaf.IsRoot())
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, 2, c.NumGenomes())

	reopened, err := Open(dir, pagestore.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.NumGenomes())

	got, err := reopened.GenomeByName("leaf")
	require.NoError(t, err)
	seq, err := got.SequenceByName("chr1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq.Length)
	bases, err := got.DNA.Range(0, 8)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", bases)

	rootGot, err := reopened.GenomeByName("root")
	require.NoError(t, err)
	assert.True(t, rootGot.IsRoot())
	assert.Equal(t, "leaf", reopened.Genome(rootGot.ChildrenIdx[0]).Name)
}

func TestSequenceBySite(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, pagestore.Options{})
	require.NoError(t, err)
	w, err := c.CreateGenome("g", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, w.DeclareSequences([]SeqSpec{
		{Name: "a", Length: 4, NumTop: 1},
		{Name: "b", Length: 6, NumTop: 1},
	}))
	require.NoError(t, w.WriteDNA("a", "ACGT"))
	require.NoError(t, w.WriteDNA("b", "ACGTAC"))
	require.NoError(t, w.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: segment.NullIndex, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, w.SetTopSegment(1, segment.TopRecord{StartPos: 4, ParentIdx: segment.NullIndex, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, w.SetTopSentinel(10))
	g, err := w.Finalize()
	require.NoError(t, err)

	seq, err := g.SequenceBySite(5)
	require.NoError(t, err)
	assert.Equal(t, "b", seq.Name)

	_, err = g.SequenceBySite(20)
	assert.Error(t, err)
}
