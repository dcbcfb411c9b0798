// Package segment implements the top- and bottom-segment record layout of
// spec.md §3 and §4.D: the child-oriented and parent-oriented coverings of
// a genome's base range, stored as two fixed-record pagestore.Arrays.
//
// This package only knows about array-index arithmetic on raw records; it
// has no notion of a tree of genomes (that belongs to package genome) and
// no notion of iteration state such as offsets or reversed flags (that
// belongs to package segiter). Keeping the record layout free of those
// concerns is what lets segiter and the mapped-segment engine compose
// freely, per the "tagged variant over a common movement interface"
// design note.
package segment

import (
	"encoding/binary"

	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/pagestore"
)

// NullIndex is the sentinel value for every absent index field: a null
// parent, a null parse-index, or a paralogy ring of size one.
const NullIndex int64 = -1

// TopRecord is one entry of a genome's top-segment array. Length is not
// stored: spec.md §3 derives it from the next record's StartPos, which is
// why a genome with N top segments stores N+1 records (the last one is a
// sentinel holding only a StartPos).
type TopRecord struct {
	StartPos        int64
	GenomeIdx       int64
	BottomParseIdx  int64
	NextParalogyIdx int64
	ParentIdx       int64
	ParentReversed  bool
}

const topRecordSize = 8*5 + 1

func encodeTop(rec TopRecord) []byte {
	b := make([]byte, topRecordSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(rec.StartPos))
	binary.LittleEndian.PutUint64(b[8:16], uint64(rec.GenomeIdx))
	binary.LittleEndian.PutUint64(b[16:24], uint64(rec.BottomParseIdx))
	binary.LittleEndian.PutUint64(b[24:32], uint64(rec.NextParalogyIdx))
	binary.LittleEndian.PutUint64(b[32:40], uint64(rec.ParentIdx))
	if rec.ParentReversed {
		b[40] = 1
	}
	return b
}

func decodeTop(b []byte) TopRecord {
	return TopRecord{
		StartPos:        int64(binary.LittleEndian.Uint64(b[0:8])),
		GenomeIdx:       int64(binary.LittleEndian.Uint64(b[8:16])),
		BottomParseIdx:  int64(binary.LittleEndian.Uint64(b[16:24])),
		NextParalogyIdx: int64(binary.LittleEndian.Uint64(b[24:32])),
		ParentIdx:       int64(binary.LittleEndian.Uint64(b[32:40])),
		ParentReversed:  b[40] != 0,
	}
}

// TopArray is a genome's top-segment array: numTop+1 records, the last a
// start-position sentinel.
type TopArray struct {
	arr    *pagestore.Array
	numTop int64
}

// CreateTopArray allocates storage for numTop top segments.
func CreateTopArray(path string, numTop int64, opts pagestore.Options) (*TopArray, error) {
	arr, err := pagestore.Create(path, topRecordSize, numTop+1, 4096, opts)
	if err != nil {
		return nil, err
	}
	return &TopArray{arr: arr, numTop: numTop}, nil
}

// LoadTopArray opens an existing top-segment array.
func LoadTopArray(path string, opts pagestore.Options) (*TopArray, error) {
	arr, err := pagestore.Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &TopArray{arr: arr, numTop: arr.Count() - 1}, nil
}

// Len returns the number of top segments (excluding the sentinel).
func (a *TopArray) Len() int64 { return a.numTop }

// Get returns the record at index i. i == Len() is legal and returns the
// sentinel (only StartPos is meaningful).
func (a *TopArray) Get(i int64) (TopRecord, error) {
	v, err := a.arr.Get(i)
	if err != nil {
		return TopRecord{}, err
	}
	return decodeTop(v), nil
}

// Set writes the record at index i.
func (a *TopArray) Set(i int64, rec TopRecord) error {
	v, err := a.arr.GetUpdate(i)
	if err != nil {
		return err
	}
	copy(v, encodeTop(rec))
	return nil
}

// SetSentinelStart sets just the StartPos of the trailing sentinel
// record, which is written once all real segments are known.
func (a *TopArray) SetSentinelStart(startPos int64) error {
	return a.Set(a.numTop, TopRecord{StartPos: startPos, GenomeIdx: NullIndex, BottomParseIdx: NullIndex, NextParalogyIdx: NullIndex, ParentIdx: NullIndex})
}

// StartPosition returns segment i's start position.
func (a *TopArray) StartPosition(i int64) (int64, error) {
	rec, err := a.Get(i)
	if err != nil {
		return 0, err
	}
	return rec.StartPos, nil
}

// EndPosition returns segment i's end position (exclusive), i.e. the next
// record's start position.
func (a *TopArray) EndPosition(i int64) (int64, error) {
	return a.StartPosition(i + 1)
}

// Length returns segment i's length in bases.
func (a *TopArray) Length(i int64) (int64, error) {
	start, err := a.StartPosition(i)
	if err != nil {
		return 0, err
	}
	end, err := a.EndPosition(i)
	if err != nil {
		return 0, err
	}
	if end <= start {
		return 0, halerrors.E(halerrors.Invariant, "top segment", i, "has non-positive length", end-start)
	}
	return end - start, nil
}

// IsFirst reports whether i is the first top segment.
func (a *TopArray) IsFirst(i int64) bool { return i == 0 }

// IsLast reports whether i is the last top segment.
func (a *TopArray) IsLast(i int64) bool { return i == a.numTop-1 }

// HasParent reports whether segment i maps to a parent bottom segment.
func (a *TopArray) HasParent(i int64) (bool, error) {
	rec, err := a.Get(i)
	if err != nil {
		return false, err
	}
	return rec.ParentIdx != NullIndex, nil
}

// ParalogyRing returns every top-segment index in the cyclic paralogy ring
// containing i (including i itself), by following NextParalogyIdx. It
// terminates after at most Len() steps, per the Design Notes "Cyclic
// paralogy" guidance, surfacing halerrors.Invariant if the ring doesn't
// close — which would mean the persisted data is corrupt.
func (a *TopArray) ParalogyRing(i int64) ([]int64, error) {
	ring := []int64{i}
	cur := i
	for steps := int64(0); ; steps++ {
		rec, err := a.Get(cur)
		if err != nil {
			return nil, err
		}
		if rec.NextParalogyIdx == NullIndex || rec.NextParalogyIdx == i {
			return ring, nil
		}
		if steps > a.numTop {
			return nil, halerrors.E(halerrors.Invariant, "paralogy ring starting at", i, "did not close")
		}
		cur = rec.NextParalogyIdx
		ring = append(ring, cur)
	}
}

// Flush finalizes the backing array.
func (a *TopArray) Flush() error { return a.arr.Flush() }

// Close releases the backing array's file handles.
func (a *TopArray) Close() error { return a.arr.Close() }

// BottomChild is one child slot of a bottom-segment record.
type BottomChild struct {
	ChildIdx int64
	Reversed bool
}

// BottomRecord is one entry of a genome's bottom-segment array. Unlike
// top segments, a bottom segment stores its Length directly, so no
// trailing sentinel is needed (resolved Open Question, see DESIGN.md).
type BottomRecord struct {
	GenomeIdx     int64
	Length        int64
	TopParseIdx   int64
	FirstChildIdx int64
	Children      []BottomChild
}

func bottomRecordSize(numChildren int64) int64 {
	return 8*4 + numChildren*(8+1)
}

func encodeBottom(rec BottomRecord, numChildren int64) []byte {
	b := make([]byte, bottomRecordSize(numChildren))
	binary.LittleEndian.PutUint64(b[0:8], uint64(rec.GenomeIdx))
	binary.LittleEndian.PutUint64(b[8:16], uint64(rec.Length))
	binary.LittleEndian.PutUint64(b[16:24], uint64(rec.TopParseIdx))
	binary.LittleEndian.PutUint64(b[24:32], uint64(rec.FirstChildIdx))
	off := 32
	for c := int64(0); c < numChildren; c++ {
		var child BottomChild
		if int(c) < len(rec.Children) {
			child = rec.Children[c]
		} else {
			child = BottomChild{ChildIdx: NullIndex}
		}
		binary.LittleEndian.PutUint64(b[off:off+8], uint64(child.ChildIdx))
		if child.Reversed {
			b[off+8] = 1
		}
		off += 9
	}
	return b
}

func decodeBottom(b []byte, numChildren int64) BottomRecord {
	rec := BottomRecord{
		GenomeIdx:     int64(binary.LittleEndian.Uint64(b[0:8])),
		Length:        int64(binary.LittleEndian.Uint64(b[8:16])),
		TopParseIdx:   int64(binary.LittleEndian.Uint64(b[16:24])),
		FirstChildIdx: int64(binary.LittleEndian.Uint64(b[24:32])),
		Children:      make([]BottomChild, numChildren),
	}
	off := 32
	for c := int64(0); c < numChildren; c++ {
		rec.Children[c] = BottomChild{
			ChildIdx: int64(binary.LittleEndian.Uint64(b[off : off+8])),
			Reversed: b[off+8] != 0,
		}
		off += 9
	}
	return rec
}

// BottomArray is a genome's bottom-segment array.
type BottomArray struct {
	arr         *pagestore.Array
	numChildren int64
}

// CreateBottomArray allocates storage for numBottom bottom segments, each
// with numChildren child slots (the genome's number of direct
// descendants, fixed by the tree topology).
func CreateBottomArray(path string, numBottom, numChildren int64, opts pagestore.Options) (*BottomArray, error) {
	arr, err := pagestore.Create(path, bottomRecordSize(numChildren), numBottom, 4096, opts)
	if err != nil {
		return nil, err
	}
	return &BottomArray{arr: arr, numChildren: numChildren}, nil
}

// LoadBottomArray opens an existing bottom-segment array. numChildren
// must be supplied by the caller (the genome catalog), since it is fixed
// by tree topology rather than recoverable from the record bytes alone.
func LoadBottomArray(path string, numChildren int64, opts pagestore.Options) (*BottomArray, error) {
	arr, err := pagestore.Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &BottomArray{arr: arr, numChildren: numChildren}, nil
}

// Len returns the number of bottom segments.
func (a *BottomArray) Len() int64 { return a.arr.Count() }

// NumChildren returns the fixed number of child slots per record.
func (a *BottomArray) NumChildren() int64 { return a.numChildren }

// Get returns the record at index i.
func (a *BottomArray) Get(i int64) (BottomRecord, error) {
	v, err := a.arr.Get(i)
	if err != nil {
		return BottomRecord{}, err
	}
	return decodeBottom(v, a.numChildren), nil
}

// Set writes the record at index i.
func (a *BottomArray) Set(i int64, rec BottomRecord) error {
	v, err := a.arr.GetUpdate(i)
	if err != nil {
		return err
	}
	copy(v, encodeBottom(rec, a.numChildren))
	return nil
}

// BottomArray has no StartPosition method. Bottom segments don't
// carry StartPos directly in the record (spec.md §4.D lists Length, not a
// position); the genome catalog derives it by prefix-summing Length over
// segments 0..i, since segments are contiguous (spec.md §3 invariant).
// BottomArray itself exposes only Length; callers needing StartPosition
// use genome.Genome.BottomStartPosition.

// IsFirst reports whether i is the first bottom segment.
func (a *BottomArray) IsFirst(i int64) bool { return i == 0 }

// IsLast reports whether i is the last bottom segment.
func (a *BottomArray) IsLast(i int64) bool { return i == a.Len()-1 }

// HasChild reports whether child slot c of bottom segment i is mapped.
func (a *BottomArray) HasChild(i int64, c int) (bool, error) {
	rec, err := a.Get(i)
	if err != nil {
		return false, err
	}
	if c < 0 || int64(c) >= a.numChildren {
		return false, halerrors.E(halerrors.OutOfRange, "child slot", c, "out of range [0,", a.numChildren, ")")
	}
	return rec.Children[c].ChildIdx != NullIndex, nil
}

// GetLeftChildIndex returns the child index stored in the first (slot 0)
// child of bottom segment i.
func (a *BottomArray) GetLeftChildIndex(i int64) (int64, error) {
	rec, err := a.Get(i)
	if err != nil {
		return NullIndex, err
	}
	if len(rec.Children) == 0 {
		return NullIndex, nil
	}
	return rec.Children[0].ChildIdx, nil
}

// GetRightChildIndex returns the child index stored in the last child
// slot of bottom segment i.
func (a *BottomArray) GetRightChildIndex(i int64) (int64, error) {
	rec, err := a.Get(i)
	if err != nil {
		return NullIndex, err
	}
	if len(rec.Children) == 0 {
		return NullIndex, nil
	}
	return rec.Children[len(rec.Children)-1].ChildIdx, nil
}

// Flush finalizes the backing array.
func (a *BottomArray) Flush() error { return a.arr.Flush() }

// Close releases the backing array's file handles.
func (a *BottomArray) Close() error { return a.arr.Close() }

// IsCanonical reports whether top segment topIdx is the one childIdx
// slot of the parent bottom record points back to -- i.e. it is the
// canonical paralog for that parent, per spec.md's "Canonical paralog"
// glossary entry. childSlot is the position of this genome among its
// parent's children, which only the tree (package genome) knows.
func IsCanonical(parent BottomRecord, childSlot int, topIdx int64) bool {
	if childSlot < 0 || childSlot >= len(parent.Children) {
		return false
	}
	return parent.Children[childSlot].ChildIdx == topIdx
}
