package halstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildTwoLeaf builds root -> {left, right}, each a 10-base identity
// alignment, matching spec.md §8 scenario 1's topology.
func buildTwoLeaf(t *testing.T) *genome.Catalog {
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

	for _, name := range []string{"left", "right"} {
		lw, err := c.CreateGenome(name, "root", 0.25, 0)
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

func TestGenomes(t *testing.T) {
	c := buildTwoLeaf(t)
	stats := Genomes(c)
	require.Len(t, stats, 3)
	byName := make(map[string]GenomeStats)
	for _, s := range stats {
		byName[s.Name] = s
	}
	assert.Equal(t, int64(10), byName["root"].Length)
	assert.Equal(t, 2, byName["root"].NumChildren)
	assert.Equal(t, "root", byName["left"].ParentName)
	assert.Equal(t, 0.25, byName["left"].BranchLength)
}

func TestSequences(t *testing.T) {
	c := buildTwoLeaf(t)
	seqs, err := Sequences(c, "left")
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, "chr1", seqs[0].Name)
	assert.Equal(t, int64(10), seqs[0].Length)
}

func TestSequencesUnknownGenome(t *testing.T) {
	c := buildTwoLeaf(t)
	_, err := Sequences(c, "nope")
	require.Error(t, err)
}

func TestTreeString(t *testing.T) {
	c := buildTwoLeaf(t)
	tree := TreeString(c)
	assert.Contains(t, tree, "left:0.25")
	assert.Contains(t, tree, "right:0.25")
	assert.True(t, tree[len(tree)-1] == ';')
}

func TestSpan(t *testing.T) {
	c := buildTwoLeaf(t)
	d, err := Span(c, "left", "right")
	require.NoError(t, err)
	assert.Equal(t, 0.5, d)

	d, err = Span(c, "left", "root")
	require.NoError(t, err)
	assert.Equal(t, 0.25, d)
}

func TestBranchLengths(t *testing.T) {
	c := buildTwoLeaf(t)
	bl := BranchLengths(c)
	require.Len(t, bl, 3)
	for _, b := range bl {
		if b.GenomeName == "root" {
			assert.Equal(t, 0.0, b.Length)
		} else {
			assert.Equal(t, 0.25, b.Length)
		}
	}
}
