package pagestore

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/hal/halerrors"
)

func writeAll(t *testing.T, a *Array, n int64) {
	for i := int64(0); i < n; i++ {
		v, err := a.GetUpdate(i)
		require.NoError(t, err)
		binary.LittleEndian.PutUint64(v, uint64(i*7+1))
	}
}

func checkAll(t *testing.T, a *Array, n int64) {
	for i := int64(0); i < n; i++ {
		v, err := a.Get(i)
		require.NoError(t, err)
		assert.Equal(t, uint64(i*7+1), binary.LittleEndian.Uint64(v))
	}
}

func TestCreateWriteFlushLoadRoundTrip(t *testing.T) {
	for _, comp := range []Compression{NoCompression, Snappy, Zstd} {
		comp := comp
		t.Run("", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "records.arr")
			a, err := Create(path, 8, 100, 7, Options{Compression: comp, ChunksInBuffer: 3})
			require.NoError(t, err)
			writeAll(t, a, 100)
			checkAll(t, a, 100)
			require.NoError(t, a.Flush())
			require.NoError(t, a.Close())

			loaded, err := Load(path, Options{ChunksInBuffer: 2})
			require.NoError(t, err)
			defer loaded.Close()
			assert.Equal(t, int64(100), loaded.Count())
			checkAll(t, loaded, 100)
		})
	}
}

func TestOutOfRange(t *testing.T) {
	dir := t.TempDir()
	a, err := Create(filepath.Join(dir, "a.arr"), 4, 10, 4, Options{})
	require.NoError(t, err)
	_, err = a.Get(10)
	require.Error(t, err)
	assert.Equal(t, halerrors.OutOfRange, halerrors.GetKind(err))
	_, err = a.Get(-1)
	require.Error(t, err)
	assert.Equal(t, halerrors.OutOfRange, halerrors.GetKind(err))
}

func TestChunkSizeOneRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "a.arr"), 4, 10, 1, Options{})
	require.Error(t, err)
	assert.Equal(t, halerrors.InvalidArgument, halerrors.GetKind(err))
}

func TestChunkSizeLargerThanCountClamped(t *testing.T) {
	dir := t.TempDir()
	a, err := Create(filepath.Join(dir, "a.arr"), 4, 5, 1000, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.chunkSize)
}

func TestGetUpdateAfterFlushFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.arr")
	a, err := Create(path, 4, 4, 2, Options{})
	require.NoError(t, err)
	writeAll(t, a, 4)
	require.NoError(t, a.Flush())
	_, err = a.GetUpdate(0)
	require.Error(t, err)
	assert.Equal(t, halerrors.InvalidArgument, halerrors.GetKind(err))
}

func TestEvictionWritesBackDirtyPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.arr")
	// chunksInBuffer=1 forces every new chunk touch to evict the previous one.
	a, err := Create(path, 8, 20, 2, Options{ChunksInBuffer: 1})
	require.NoError(t, err)
	writeAll(t, a, 20)
	checkAll(t, a, 20)
	require.NoError(t, a.Flush())
	require.NoError(t, a.Close())

	loaded, err := Load(path, Options{ChunksInBuffer: 1})
	require.NoError(t, err)
	defer loaded.Close()
	checkAll(t, loaded, 20)
}
