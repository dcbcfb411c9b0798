package segment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/pagestore"
)

func TestTopArrayLengthAndSentinel(t *testing.T) {
	dir := t.TempDir()
	a, err := CreateTopArray(filepath.Join(dir, "top.arr"), 3, pagestore.Options{})
	require.NoError(t, err)
	starts := []int64{0, 4, 9, 15}
	for i, s := range starts[:3] {
		require.NoError(t, a.Set(int64(i), TopRecord{StartPos: s, ParentIdx: NullIndex, BottomParseIdx: NullIndex, NextParalogyIdx: NullIndex}))
	}
	require.NoError(t, a.SetSentinelStart(starts[3]))

	for i := 0; i < 3; i++ {
		length, err := a.Length(int64(i))
		require.NoError(t, err)
		assert.Equal(t, starts[i+1]-starts[i], length)
	}
	assert.True(t, a.IsFirst(0))
	assert.True(t, a.IsLast(2))
	assert.False(t, a.IsLast(1))
}

func TestTopArrayHasParent(t *testing.T) {
	dir := t.TempDir()
	a, err := CreateTopArray(filepath.Join(dir, "top.arr"), 2, pagestore.Options{})
	require.NoError(t, err)
	require.NoError(t, a.Set(0, TopRecord{StartPos: 0, ParentIdx: 5, BottomParseIdx: NullIndex, NextParalogyIdx: NullIndex}))
	require.NoError(t, a.Set(1, TopRecord{StartPos: 10, ParentIdx: NullIndex, BottomParseIdx: NullIndex, NextParalogyIdx: NullIndex}))
	require.NoError(t, a.SetSentinelStart(20))

	hp, err := a.HasParent(0)
	require.NoError(t, err)
	assert.True(t, hp)
	hp, err = a.HasParent(1)
	require.NoError(t, err)
	assert.False(t, hp)
}

func TestParalogyRingCycles(t *testing.T) {
	dir := t.TempDir()
	a, err := CreateTopArray(filepath.Join(dir, "top.arr"), 3, pagestore.Options{})
	require.NoError(t, err)
	// Ring: 0 -> 1 -> 2 -> 0.
	require.NoError(t, a.Set(0, TopRecord{StartPos: 0, ParentIdx: 0, NextParalogyIdx: 1, BottomParseIdx: NullIndex}))
	require.NoError(t, a.Set(1, TopRecord{StartPos: 5, ParentIdx: 0, NextParalogyIdx: 2, BottomParseIdx: NullIndex}))
	require.NoError(t, a.Set(2, TopRecord{StartPos: 10, ParentIdx: 0, NextParalogyIdx: 0, BottomParseIdx: NullIndex}))
	require.NoError(t, a.SetSentinelStart(15))

	ring, err := a.ParalogyRing(0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{0, 1, 2}, ring)

	ring, err = a.ParalogyRing(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 0}, ring)
}

func TestBottomArrayChildren(t *testing.T) {
	dir := t.TempDir()
	a, err := CreateBottomArray(filepath.Join(dir, "bot.arr"), 2, 2, pagestore.Options{})
	require.NoError(t, err)
	require.NoError(t, a.Set(0, BottomRecord{
		Length:        10,
		TopParseIdx:   NullIndex,
		FirstChildIdx: 0,
		Children:      []BottomChild{{ChildIdx: 3, Reversed: false}, {ChildIdx: NullIndex}},
	}))
	require.NoError(t, a.Set(1, BottomRecord{
		Length:        5,
		TopParseIdx:   NullIndex,
		FirstChildIdx: 0,
		Children:      []BottomChild{{ChildIdx: 7, Reversed: true}, {ChildIdx: 8, Reversed: false}},
	}))

	has, err := a.HasChild(0, 0)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = a.HasChild(0, 1)
	require.NoError(t, err)
	assert.False(t, has)

	left, err := a.GetLeftChildIndex(1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), left)
	right, err := a.GetRightChildIndex(1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), right)

	rec, err := a.Get(1)
	require.NoError(t, err)
	assert.True(t, rec.Children[0].Reversed)
	assert.False(t, rec.Children[1].Reversed)
}

func TestIsCanonical(t *testing.T) {
	parent := BottomRecord{Children: []BottomChild{{ChildIdx: 2}, {ChildIdx: 9}}}
	assert.True(t, IsCanonical(parent, 0, 2))
	assert.False(t, IsCanonical(parent, 0, 9))
	assert.True(t, IsCanonical(parent, 1, 9))
}
