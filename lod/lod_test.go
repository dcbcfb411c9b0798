package lod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildTwoLeafLevel builds root -> {leafA, leafB}, each leaf carrying
// one top segment mapping onto root's single bottom segment, the same
// topology as mapped_test.go's buildCousins: a minimal tree with real
// homology for Build to sample.
func buildTwoLeafLevel(t *testing.T) (*genome.Genome, []*genome.Genome) {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 2)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 20, NumBot: 1}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGTACGTACACGTACGTAC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{
		Length: 20, TopParseIdx: segment.NullIndex,
		Children: []segment.BottomChild{{ChildIdx: 0}, {ChildIdx: 0}},
	}))
	root, err := rw.Finalize()
	require.NoError(t, err)

	var children []*genome.Genome
	for _, name := range []string{"leafA", "leafB"} {
		lw, err := c.CreateGenome(name, "root", 0.1, 0)
		require.NoError(t, err)
		require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 20, NumTop: 1}}))
		require.NoError(t, lw.WriteDNA("chr1", "ACGTACGTACACGTACGTAC"))
		require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
		require.NoError(t, lw.SetTopSentinel(20))
		leaf, err := lw.Finalize()
		require.NoError(t, err)
		children = append(children, leaf)
	}
	return root, children
}

func TestBuildProducesBlocksCoveringBothLeaves(t *testing.T) {
	root, children := buildTwoLeafLevel(t)
	g, err := Build(root, children, nil, Options{Step: 5})
	require.NoError(t, err)

	blocks := g.Blocks()
	require.NotEmpty(t, blocks)
	seen := make(map[string]bool)
	for _, b := range blocks {
		genomes := make(map[string]bool)
		for _, seg := range b.Segments {
			genomes[seg.Genome.Name] = true
			seen[seg.Genome.Name] = true
		}
		assert.True(t, genomes["leafA"] || genomes["leafB"] || genomes["root"])
	}
	assert.True(t, seen["leafA"])
	assert.True(t, seen["leafB"])
}

func TestBuildWithAllSequencesIncludesShortSequences(t *testing.T) {
	root, children := buildTwoLeafLevel(t)
	g, err := Build(root, children, nil, Options{Step: 1000, AllSequences: true})
	require.NoError(t, err)
	assert.NotNil(t, g)

	// The 20-base sequences are shorter than MinSeqFrac*Step; only a
	// sampled column yields a block with more than one segment (fillers
	// carry one each).
	sampled := false
	for _, b := range g.Blocks() {
		if len(b.Segments) > 1 {
			sampled = true
		}
	}
	assert.True(t, sampled)
}
