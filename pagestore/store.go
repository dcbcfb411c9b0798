// Package pagestore implements the paged, fixed-record-size array store
// that backs every on-disk dataset described in spec.md §6: sequence
// index records, top/bottom segment records, and the packed DNA byte
// array. It is deliberately independent of what the records mean — the
// genome and segment packages interpret the bytes a View exposes.
//
// A store is written once, in one pass (Create, a run of Get/GetUpdate,
// then Flush), and is read-only ever after (Load). This mirrors the
// container lifecycle in spec.md §3 "Lifecycles" and the explicit
// Non-goal of updating an existing file in place.
package pagestore

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"blainsmith.com/go/seahash"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"v.io/x/lib/vlog"

	"github.com/grailbio/hal/halerrors"
)

// Compression selects the codec used to compress each chunk when an Array
// is flushed. The paged store never compresses a partial page in memory;
// compression happens once, chunk-at-a-time, during Flush.
type Compression int

const (
	// NoCompression stores each chunk as raw bytes.
	NoCompression Compression = iota
	// Snappy compresses each chunk with github.com/golang/snappy, the
	// codec the teacher uses for its mate-shard spill files.
	Snappy
	// Zstd compresses each chunk with github.com/klauspost/compress/zstd,
	// the codec the teacher's PAM format requests by name
	// ("Transformers: []string{\"zstd\"}").
	Zstd
)

const (
	magic          uint64 = 0x68616c2e70616765 // "hal.page"
	formatVersion  uint32 = 1
	headerSize            = 8 + 4 + 8 + 8 + 8 + 8 + 1 + 7 // magic,version,recordSize,count,chunkSize,numChunks,compression,pad
	dirEntrySize           = 8 + 8 + 8                     // offset, storedLen, checksum
)

// Options configures Create and Load.
type Options struct {
	// Compression selects the on-disk codec. Ignored by Load, which reads
	// the codec recorded in the file header.
	Compression Compression
	// ChunksInBuffer bounds the page cache: at most this many chunks are
	// resident at once. Zero means DefaultChunksInBuffer.
	ChunksInBuffer int
}

// DefaultChunksInBuffer is used when Options.ChunksInBuffer is zero.
const DefaultChunksInBuffer = 16

type chunkMeta struct {
	offset    int64
	storedLen int64
	checksum  uint64
}

type page struct {
	chunkIdx int64
	buf      []byte // exactly chunkRecords(chunkIdx)*recordSize bytes
	dirty    bool
}

// Array is an open paged, fixed-record array.
type Array struct {
	path        string
	recordSize  int64
	count       int64
	chunkSize   int64
	numChunks   int64
	compression Compression

	chunksInBuffer int
	cache          map[int64]*page
	lru            []int64 // most-recently-used at the end

	// writing is true between Create and Flush: Get/GetUpdate are served
	// from scratchFile at fixed offsets. After Flush (or after Load),
	// writing is false and chunks are read from finalFile via chunks[].
	writing    bool
	scratch    *os.File
	scratchErr error

	final   *os.File
	chunks  []chunkMeta
}

// View is a window onto one record's bytes. It is valid until a later Get
// or GetUpdate call faults in another page and evicts the page it points
// into; callers must copy out anything they need to keep past that point.
type View []byte

func clampChunkSize(chunkSize, count int64) (int64, error) {
	if chunkSize == 1 {
		return 0, halerrors.E(halerrors.InvalidArgument, "chunk size of 1 is not allowed")
	}
	if chunkSize <= 0 {
		return 0, halerrors.E(halerrors.InvalidArgument, "chunk size must be positive")
	}
	if chunkSize > count {
		chunkSize = count
	}
	return chunkSize, nil
}

// Create allocates a new array of "count" fixed-size records, "chunkSize"
// records per page. The returned Array is writable until Flush is called.
func Create(path string, recordSize, count, chunkSize int64, opts Options) (*Array, error) {
	if recordSize <= 0 || count < 0 {
		return nil, halerrors.E(halerrors.InvalidArgument, "recordSize and count must be non-negative", recordSize, count)
	}
	if count == 0 {
		chunkSize = 1
	} else {
		var err error
		chunkSize, err = clampChunkSize(chunkSize, count)
		if err != nil {
			return nil, err
		}
	}
	scratch, err := os.OpenFile(path+".scratch", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "create scratch for", path)
	}
	if count > 0 {
		if err := scratch.Truncate(count * recordSize); err != nil {
			scratch.Close()
			return nil, halerrors.E(halerrors.IoError, err, "truncate scratch for", path)
		}
	}
	numChunks := int64(0)
	if count > 0 {
		numChunks = (count + chunkSize - 1) / chunkSize
	}
	chunksInBuffer := opts.ChunksInBuffer
	if chunksInBuffer <= 0 {
		chunksInBuffer = DefaultChunksInBuffer
	}
	return &Array{
		path:           path,
		recordSize:     recordSize,
		count:          count,
		chunkSize:      chunkSize,
		numChunks:      numChunks,
		compression:    opts.Compression,
		chunksInBuffer: chunksInBuffer,
		cache:          make(map[int64]*page),
		writing:        true,
		scratch:        scratch,
	}, nil
}

// Load opens an existing array for reading.
func Load(path string, opts Options) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "open", path)
	}
	r := bufio.NewReader(f)
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		f.Close()
		return nil, halerrors.E(halerrors.Schema, err, "reading header of", path)
	}
	if binary.LittleEndian.Uint64(hdr[0:8]) != magic {
		f.Close()
		return nil, halerrors.E(halerrors.Schema, "bad magic in", path)
	}
	version := binary.LittleEndian.Uint32(hdr[8:12])
	if version != formatVersion {
		f.Close()
		return nil, halerrors.E(halerrors.Schema, "unsupported version", version, "in", path)
	}
	recordSize := int64(binary.LittleEndian.Uint64(hdr[12:20]))
	count := int64(binary.LittleEndian.Uint64(hdr[20:28]))
	chunkSize := int64(binary.LittleEndian.Uint64(hdr[28:36]))
	numChunks := int64(binary.LittleEndian.Uint64(hdr[36:44]))
	compression := Compression(hdr[44])

	chunks := make([]chunkMeta, numChunks)
	if numChunks > 0 {
		dirBuf := make([]byte, dirEntrySize*numChunks)
		if _, err := io.ReadFull(r, dirBuf); err != nil {
			f.Close()
			return nil, halerrors.E(halerrors.Schema, err, "reading chunk directory of", path)
		}
		for i := int64(0); i < numChunks; i++ {
			b := dirBuf[i*dirEntrySize:]
			chunks[i] = chunkMeta{
				offset:    int64(binary.LittleEndian.Uint64(b[0:8])),
				storedLen: int64(binary.LittleEndian.Uint64(b[8:16])),
				checksum:  binary.LittleEndian.Uint64(b[16:24]),
			}
		}
	}
	chunksInBuffer := opts.ChunksInBuffer
	if chunksInBuffer <= 0 {
		chunksInBuffer = DefaultChunksInBuffer
	}
	return &Array{
		path:           path,
		recordSize:     recordSize,
		count:          count,
		chunkSize:      chunkSize,
		numChunks:      numChunks,
		compression:    compression,
		chunksInBuffer: chunksInBuffer,
		cache:          make(map[int64]*page),
		writing:        false,
		final:          f,
		chunks:         chunks,
	}, nil
}

// Count returns the fixed number of records in the array.
func (a *Array) Count() int64 { return a.count }

// RecordSize returns the fixed record size in bytes.
func (a *Array) RecordSize() int64 { return a.recordSize }

func (a *Array) chunkRecords(chunkIdx int64) int64 {
	start := chunkIdx * a.chunkSize
	n := a.count - start
	if n > a.chunkSize {
		n = a.chunkSize
	}
	return n
}

func (a *Array) checkIndex(i int64) error {
	if i < 0 || i >= a.count {
		return halerrors.E(halerrors.OutOfRange, "index", i, "out of range [0,", a.count, ")")
	}
	return nil
}

// touch marks chunkIdx as most-recently-used.
func (a *Array) touch(chunkIdx int64) {
	for i, c := range a.lru {
		if c == chunkIdx {
			a.lru = append(a.lru[:i], a.lru[i+1:]...)
			break
		}
	}
	a.lru = append(a.lru, chunkIdx)
}

func (a *Array) evictIfNeeded() error {
	for len(a.cache) > a.chunksInBuffer && len(a.lru) > 0 {
		victim := a.lru[0]
		a.lru = a.lru[1:]
		p, ok := a.cache[victim]
		if !ok {
			continue
		}
		if p.dirty {
			if err := a.writeBack(p); err != nil {
				return err
			}
		}
		delete(a.cache, victim)
	}
	return nil
}

func (a *Array) writeBack(p *page) error {
	if !a.writing {
		return halerrors.E(halerrors.Invariant, "writeBack called on a finalized array")
	}
	off := p.chunkIdx * a.chunkSize * a.recordSize
	if _, err := a.scratch.WriteAt(p.buf, off); err != nil {
		return halerrors.E(halerrors.IoError, err, "writing back chunk", p.chunkIdx, "of", a.path)
	}
	p.dirty = false
	return nil
}

func (a *Array) fetch(chunkIdx int64) (*page, error) {
	if p, ok := a.cache[chunkIdx]; ok {
		a.touch(chunkIdx)
		return p, nil
	}
	vlog.VI(1).Infof("pagestore: page fault on chunk %d of %s", chunkIdx, a.path)
	n := a.chunkRecords(chunkIdx)
	buf := make([]byte, n*a.recordSize)
	if a.writing {
		if _, err := a.scratch.ReadAt(buf, chunkIdx*a.chunkSize*a.recordSize); err != nil && err != io.EOF {
			return nil, halerrors.E(halerrors.IoError, err, "reading chunk", chunkIdx, "of", a.path)
		}
	} else {
		cm := a.chunks[chunkIdx]
		raw := make([]byte, cm.storedLen)
		if _, err := a.final.ReadAt(raw, cm.offset); err != nil {
			return nil, halerrors.E(halerrors.IoError, err, "reading chunk", chunkIdx, "of", a.path)
		}
		if seahash.Sum64(raw) != cm.checksum {
			return nil, halerrors.E(halerrors.Invariant, "checksum mismatch in chunk", chunkIdx, "of", a.path)
		}
		decoded, err := decompress(a.compression, raw, len(buf))
		if err != nil {
			return nil, halerrors.E(halerrors.Schema, err, "decompressing chunk", chunkIdx, "of", a.path)
		}
		copy(buf, decoded)
	}
	p := &page{chunkIdx: chunkIdx, buf: buf}
	a.cache[chunkIdx] = p
	a.touch(chunkIdx)
	if err := a.evictIfNeeded(); err != nil {
		return nil, err
	}
	return a.cache[chunkIdx], nil
}

// Get returns a read-only view of record i.
func (a *Array) Get(i int64) (View, error) {
	if err := a.checkIndex(i); err != nil {
		return nil, err
	}
	chunkIdx := i / a.chunkSize
	p, err := a.fetch(chunkIdx)
	if err != nil {
		return nil, err
	}
	off := (i % a.chunkSize) * a.recordSize
	return View(p.buf[off : off+a.recordSize]), nil
}

// GetUpdate returns a mutable view of record i and marks its page dirty.
// It fails with InvalidArgument once the array has been finalized by
// Flush (or opened via Load): updating an existing, closed array in place
// is unsupported.
func (a *Array) GetUpdate(i int64) (View, error) {
	if !a.writing {
		return nil, halerrors.E(halerrors.InvalidArgument, "GetUpdate on a read-only array", a.path)
	}
	if err := a.checkIndex(i); err != nil {
		return nil, err
	}
	chunkIdx := i / a.chunkSize
	p, err := a.fetch(chunkIdx)
	if err != nil {
		return nil, err
	}
	p.dirty = true
	off := (i % a.chunkSize) * a.recordSize
	return View(p.buf[off : off+a.recordSize]), nil
}

// Flush writes back all dirty pages, then — if the array was created with
// Create — compresses and seals the final file and discards the scratch
// file. After Flush returns successfully the array is read-only; call
// Close to release its file handles.
func (a *Array) Flush() error {
	if !a.writing {
		return nil
	}
	for idx, p := range a.cache {
		if p.dirty {
			if err := a.writeBack(p); err != nil {
				return err
			}
		}
		_ = idx
	}
	final, err := os.OpenFile(a.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return halerrors.E(halerrors.IoError, err, "creating", a.path)
	}
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr[0:8], magic)
	binary.LittleEndian.PutUint32(hdr[8:12], formatVersion)
	binary.LittleEndian.PutUint64(hdr[12:20], uint64(a.recordSize))
	binary.LittleEndian.PutUint64(hdr[20:28], uint64(a.count))
	binary.LittleEndian.PutUint64(hdr[28:36], uint64(a.chunkSize))
	binary.LittleEndian.PutUint64(hdr[36:44], uint64(a.numChunks))
	hdr[44] = byte(a.compression)
	if _, err := final.Write(hdr); err != nil {
		final.Close()
		return halerrors.E(halerrors.IoError, err, "writing header of", a.path)
	}

	chunks := make([]chunkMeta, a.numChunks)
	// Reserve space for the directory; it is rewritten once chunk offsets
	// are known.
	dirOff, err := final.Seek(int64(dirEntrySize)*a.numChunks, io.SeekCurrent)
	if err != nil {
		final.Close()
		return halerrors.E(halerrors.IoError, err, "reserving directory of", a.path)
	}
	_ = dirOff
	writeOff := headerSize + int(dirEntrySize)*int(a.numChunks)
	rawBuf := make([]byte, a.chunkSize*a.recordSize)
	for idx := int64(0); idx < a.numChunks; idx++ {
		n := a.chunkRecords(idx)
		chunkBytes := rawBuf[:n*a.recordSize]
		if _, err := a.scratch.ReadAt(chunkBytes, idx*a.chunkSize*a.recordSize); err != nil && err != io.EOF {
			final.Close()
			return halerrors.E(halerrors.IoError, err, "reading scratch chunk", idx)
		}
		stored, err := compress(a.compression, chunkBytes)
		if err != nil {
			final.Close()
			return halerrors.E(halerrors.IoError, err, "compressing chunk", idx)
		}
		checksum := seahash.Sum64(stored)
		if _, err := final.WriteAt(stored, int64(writeOff)); err != nil {
			final.Close()
			return halerrors.E(halerrors.IoError, err, "writing chunk", idx)
		}
		chunks[idx] = chunkMeta{offset: int64(writeOff), storedLen: int64(len(stored)), checksum: checksum}
		writeOff += len(stored)
	}

	dirBuf := make([]byte, dirEntrySize*a.numChunks)
	for i, c := range chunks {
		b := dirBuf[int64(i)*dirEntrySize:]
		binary.LittleEndian.PutUint64(b[0:8], uint64(c.offset))
		binary.LittleEndian.PutUint64(b[8:16], uint64(c.storedLen))
		binary.LittleEndian.PutUint64(b[16:24], c.checksum)
	}
	if _, err := final.WriteAt(dirBuf, headerSize); err != nil {
		final.Close()
		return halerrors.E(halerrors.IoError, err, "writing directory of", a.path)
	}

	a.scratch.Close()
	os.Remove(a.path + ".scratch")
	a.scratch = nil
	a.chunks = chunks
	a.final = final
	a.writing = false
	a.cache = make(map[int64]*page)
	a.lru = nil
	return nil
}

// Close releases the array's open file handles. It does not flush: call
// Flush first if the array is still being written.
func (a *Array) Close() error {
	var err error
	if a.scratch != nil {
		err = a.scratch.Close()
	}
	if a.final != nil {
		if e := a.final.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func compress(kind Compression, data []byte) ([]byte, error) {
	switch kind {
	case NoCompression:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, halerrors.E(halerrors.Schema, "unknown compression kind", int(kind))
	}
}

func decompress(kind Compression, data []byte, hint int) ([]byte, error) {
	switch kind {
	case NoCompression:
		return data, nil
	case Snappy:
		return snappy.Decode(nil, data)
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, make([]byte, 0, hint))
	default:
		return nil, halerrors.E(halerrors.Schema, "unknown compression kind", int(kind))
	}
}
