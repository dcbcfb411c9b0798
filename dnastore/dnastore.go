// Package dnastore implements the packed 4-bit nucleotide array described
// in spec.md §4.C: bit 3 is the upper/lower-case flag, bits 0-2 encode
// {a=0, t=1, g=2, c=3, n=4}. Two bases share a byte; even genome positions
// occupy the high nibble, odd positions the low nibble.
//
// The packer itself is out of this module's core (spec.md §1 lists "the
// DNA two-nibble packer" as an external collaborator); what lives here is
// the compile-time lookup-table idiom the rest of the codebase expects a
// packer to have, following the branchless byte-table style used
// throughout the teacher's own low-level encoders.
package dnastore

import "github.com/grailbio/hal/pagestore"

// code values, before the case bit is ORed in.
const (
	codeA byte = 0
	codeT byte = 1
	codeG byte = 2
	codeC byte = 3
	codeN byte = 4
)

const caseBit byte = 0x8

var byteToCode [256]byte
var codeToByte [16]byte

func init() {
	for i := range byteToCode {
		byteToCode[i] = codeN | caseBit
	}
	set := func(upper, lower byte, code byte) {
		byteToCode[upper] = code
		byteToCode[lower] = code | caseBit
	}
	set('A', 'a', codeA)
	set('T', 't', codeT)
	set('G', 'g', codeG)
	set('C', 'c', codeC)
	set('N', 'n', codeN)

	for c := byte(0); c < 16; c++ {
		lower := c&caseBit != 0
		var b byte
		switch c &^ caseBit {
		case codeA:
			b = 'A'
		case codeT:
			b = 'T'
		case codeG:
			b = 'G'
		case codeC:
			b = 'C'
		default:
			b = 'N'
		}
		if lower {
			b += 'a' - 'A'
		}
		codeToByte[c] = b
	}
}

// Pack encodes a single base byte (one of acgtACGTnN, or anything else
// which decodes as 'n') into its 4-bit code.
func Pack(b byte) byte {
	return byteToCode[b]
}

// Unpack decodes a 4-bit code back into its base byte.
func Unpack(code byte) byte {
	return codeToByte[code&0xf]
}

// PackString packs a string of bases into the 2-bases-per-byte layout
// spec.md §6 declares for the "dna" dataset: length = ceil(len(s)/2).
func PackString(s string) []byte {
	out := make([]byte, (len(s)+1)/2)
	for i := 0; i < len(s); i++ {
		code := Pack(s[i])
		if i%2 == 0 {
			out[i/2] = code << 4
		} else {
			out[i/2] |= code
		}
	}
	return out
}

// UnpackRange decodes the bases in [start, start+length) from a packed
// buffer into a freshly allocated string.
func UnpackRange(packed []byte, start, length int) string {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		pos := start + i
		b := packed[pos/2]
		var code byte
		if pos%2 == 0 {
			code = b >> 4
		} else {
			code = b & 0xf
		}
		out[i] = Unpack(code)
	}
	return string(out)
}

// Store is a genome's packed DNA array, backed by a pagestore.Array whose
// record size is 1 byte (one byte == two bases). Sequences are addressed
// by genome-global base position, consistent with spec.md §6 "All
// positions are genome-global (not sequence-local)".
type Store struct {
	arr    *pagestore.Array
	length int64 // number of bases, not bytes
}

// Create allocates a new packed DNA array for a genome with the given
// base count.
func Create(path string, length int64, opts pagestore.Options) (*Store, error) {
	numBytes := (length + 1) / 2
	arr, err := pagestore.Create(path, 1, numBytes, 4096, opts)
	if err != nil {
		return nil, err
	}
	return &Store{arr: arr, length: length}, nil
}

// Load opens an existing packed DNA array. The caller supplies the base
// count since it is not recoverable from the byte array alone (an odd
// length is indistinguishable from the next even length by byte count
// alone).
func Load(path string, length int64, opts pagestore.Options) (*Store, error) {
	arr, err := pagestore.Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &Store{arr: arr, length: length}, nil
}

// Length returns the number of bases in the store.
func (s *Store) Length() int64 { return s.length }

// WriteString packs and writes s starting at genome position "start".
func (s *Store) WriteString(start int64, seq string) error {
	for i := 0; i < len(seq); i++ {
		pos := start + int64(i)
		code := Pack(seq[i])
		v, err := s.arr.GetUpdate(pos / 2)
		if err != nil {
			return err
		}
		if pos%2 == 0 {
			v[0] = (v[0] &^ 0xf0) | (code << 4)
		} else {
			v[0] = (v[0] &^ 0x0f) | code
		}
	}
	return nil
}

// Base returns the (unpacked) base byte at genome position pos.
func (s *Store) Base(pos int64) (byte, error) {
	v, err := s.arr.Get(pos / 2)
	if err != nil {
		return 0, err
	}
	var code byte
	if pos%2 == 0 {
		code = v[0] >> 4
	} else {
		code = v[0] & 0xf
	}
	return Unpack(code), nil
}

// Range returns the unpacked bases in [start, start+length).
func (s *Store) Range(start, length int64) (string, error) {
	out := make([]byte, length)
	for i := int64(0); i < length; i++ {
		b, err := s.Base(start + i)
		if err != nil {
			return "", err
		}
		out[i] = b
	}
	return string(out), nil
}

// Flush finalizes the store's backing array.
func (s *Store) Flush() error { return s.arr.Flush() }

// Close releases the store's backing array.
func (s *Store) Close() error { return s.arr.Close() }

// Complement returns the complementary base (a<->t, g<->c), preserving
// case; 'n'/'N' complements to itself. Used by the mutations and mapped
// packages when composing a parentReversed strand flip.
func Complement(b byte) byte {
	switch b {
	case 'a':
		return 't'
	case 'A':
		return 'T'
	case 't':
		return 'a'
	case 'T':
		return 'A'
	case 'g':
		return 'c'
	case 'G':
		return 'C'
	case 'c':
		return 'g'
	case 'C':
		return 'G'
	default:
		return b
	}
}

// ReverseComplement returns the reverse complement of s.
func ReverseComplement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = Complement(s[i])
	}
	return string(out)
}
