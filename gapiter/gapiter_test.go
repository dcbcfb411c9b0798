package gapiter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// buildRun creates a leaf genome with 5 top segments: 0,1,2 map
// colinearly onto parent bottom indices 10,11,12; segment 3 is a short
// unmapped gap (3 bases); segment 4 resumes the chain at parent index 13.
func buildRun(t *testing.T) *genome.Genome {
	t.Helper()
	dir := t.TempDir()
	c, err := genome.Create(dir, pagestore.Options{})
	require.NoError(t, err)
	w, err := c.CreateGenome("leaf", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, w.DeclareSequences([]genome.SeqSpec{{Name: "chr1", Length: 33, NumTop: 5}}))
	require.NoError(t, w.WriteDNA("chr1", strings.Repeat("ACGT", 9)[:33]))
	starts := []int64{0, 5, 10, 15, 18}
	parents := []int64{10, 11, 12, segment.NullIndex, 13}
	for i := 0; i < 5; i++ {
		require.NoError(t, w.SetTopSegment(int64(i), segment.TopRecord{
			StartPos: starts[i], ParentIdx: parents[i], BottomParseIdx: segment.NullIndex, NextParalogyIdx: segment.NullIndex,
		}))
	}
	require.NoError(t, w.SetTopSentinel(33))
	g, err := w.Finalize()
	require.NoError(t, err)
	return g
}

func TestGappedTopIteratorAbsorbsShortGap(t *testing.T) {
	g := buildRun(t)
	it, err := NewGappedTopIterator(g, 0, 5)
	require.NoError(t, err)

	left, err := it.GetLeft()
	require.NoError(t, err)
	assert.Equal(t, int64(0), left.ArrayIndex())
	right, err := it.GetRight()
	require.NoError(t, err)
	assert.Equal(t, int64(4), right.ArrayIndex())
	assert.Equal(t, int64(1), it.NumGaps())
	assert.Equal(t, int64(3), it.NumGapBases())
}

func TestGappedTopIteratorStopsOnLongGap(t *testing.T) {
	g := buildRun(t)
	// A gap threshold of 2 is smaller than segment 3's 3-base length, so
	// the run must stop before it.
	it, err := NewGappedTopIterator(g, 0, 2)
	require.NoError(t, err)
	right, err := it.GetRight()
	require.NoError(t, err)
	assert.Equal(t, int64(2), right.ArrayIndex())
	assert.Equal(t, int64(0), it.NumGaps())

	require.NoError(t, it.ToRight())
	left, err := it.GetLeft()
	require.NoError(t, err)
	assert.Equal(t, int64(3), left.ArrayIndex())
}
