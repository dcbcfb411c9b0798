package mutations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildSubAndDeletion builds root (3 bottom segments, 25 bases total)
// and a leaf with two top segments: one colinear 1:1 mapping carrying
// one base substitution, and a break exercising a Deletion
// (spec.md §8 scenario 4's shape, simplified to one substitution plus
// one deletion).
func buildSubAndDeletion(t *testing.T) *genome.Genome {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)

	rw, err := c.CreateGenome("root", "", 0, 1)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 25, NumBot: 3}}))
	require.NoError(t, rw.WriteDNA("chr1", "AAAAAAAAAAGGGGGCCCCCCCCCC"))
	require.NoError(t, rw.SetBottomSegment(0, segment.BottomRecord{Length: 10, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 0}}}))
	require.NoError(t, rw.SetBottomSegment(1, segment.BottomRecord{Length: 5, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: segment.NullIndex}}}))
	require.NoError(t, rw.SetBottomSegment(2, segment.BottomRecord{Length: 10, TopParseIdx: segment.NullIndex, Children: []segment.BottomChild{{ChildIdx: 1}}}))
	_, err = rw.Finalize()
	require.NoError(t, err)

	lw, err := c.CreateGenome("leaf", "root", 0.2, 0)
	require.NoError(t, err)
	require.NoError(t, lw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 20, NumTop: 2}}))
	// First 10 bases: one substitution at position 3 (root has 'A', leaf has 'T').
	require.NoError(t, lw.WriteDNA("chr1", "AAATAAAAAACCCCCCCCCC"))
	require.NoError(t, lw.SetTopSegment(0, segment.TopRecord{StartPos: 0, ParentIdx: 0, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSegment(1, segment.TopRecord{StartPos: 10, ParentIdx: 2, BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex}))
	require.NoError(t, lw.SetTopSentinel(20))
	leaf, err := lw.Finalize()
	require.NoError(t, err)
	return leaf
}

func TestSummarizeCountsSubstitutionAndDeletion(t *testing.T) {
	leaf := buildSubAndDeletion(t)
	counts, err := Summarize(leaf, Options{GapThreshold: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Substitutions)
	assert.Equal(t, int64(1), counts.Deletions)
}

func TestSummarizeJustSubsSkipsRearrangements(t *testing.T) {
	leaf := buildSubAndDeletion(t)
	counts, err := Summarize(leaf, Options{GapThreshold: 2, JustSubs: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Substitutions)
	assert.Equal(t, int64(0), counts.Deletions)
}

func TestSummarizeRootHasNoBranch(t *testing.T) {
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)
	rw, err := c.CreateGenome("root", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, rw.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 4}}))
	require.NoError(t, rw.WriteDNA("chr1", "ACGT"))
	root, err := rw.Finalize()
	require.NoError(t, err)

	counts, err := Summarize(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, BranchCounts{GenomeName: "root"}, counts)
}
