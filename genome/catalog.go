// Package genome implements the genome and sequence catalog of spec.md
// §4.B: an arena of genomes keyed by name (Design Note "Parent/child
// pointer graph"), each owning an ordered sequence list plus its top and
// bottom segment arrays.
package genome

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"

	farm "github.com/dgryski/go-farm"

	"github.com/grailbio/hal/dnastore"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// Sequence is a named, contiguous base range inside its owning genome's
// coordinate space (spec.md §3 "Sequence").
type Sequence struct {
	Name          string
	Start         int64 // position in the genome's coordinate space
	Length        int64
	FirstTopIdx   int64
	NumTop        int64
	FirstBotIdx   int64
	NumBot        int64
}

// End returns the sequence's end position (exclusive).
func (s Sequence) End() int64 { return s.Start + s.Length }

// meta is the small per-genome record persisted to disk, used to
// reconstruct the tree arena on Open. It intentionally does not carry
// children: those are derived by scanning every genome's ParentName.
type meta struct {
	Name         string
	ParentName   string // "" for the root
	BranchLength float64
}

// Genome is one node of the alignment tree: a name, a position in the
// tree, its ordered sequences, and its segment/DNA storage.
type Genome struct {
	idx          int
	cat          *Catalog
	Name         string
	ParentIdx    int // -1 for the root
	ChildrenIdx  []int
	BranchLength float64

	Sequences []Sequence
	nameIndex nameIndex

	Top    *segment.TopArray
	Bottom *segment.BottomArray
	DNA    *dnastore.Store
}

// Genome returns the genome at arena index idx within g's catalog. Used
// by packages that cross between genomes (segiter, mapped, column)
// without needing to hold the Catalog themselves.
func (g *Genome) Genome(idx int) *Genome { return g.cat.genomes[idx] }

// Catalog returns the catalog g belongs to, letting callers that only
// hold a Genome (e.g. a default column iterator target set) reach every
// other genome in the same tree.
func (g *Genome) Catalog() *Catalog { return g.cat }

// Parent returns g's parent genome, or nil if g is the root.
func (g *Genome) Parent() *Genome {
	if g.ParentIdx < 0 {
		return nil
	}
	return g.cat.genomes[g.ParentIdx]
}

// Child returns g's child genome at childSlot (the position among
// ChildrenIdx, which matches a bottom record's child-slot order).
func (g *Genome) Child(childSlot int) *Genome {
	return g.cat.genomes[g.ChildrenIdx[childSlot]]
}

// Index returns the genome's position in its catalog's arena. The writer
// stores the creation-time position as GenomeIdx in
// segment.TopRecord/BottomRecord; Open fills the arena in directory-name
// order, so after reopening the two can differ.
func (g *Genome) Index() int { return g.idx }

// IsRoot reports whether g has no parent.
func (g *Genome) IsRoot() bool { return g.ParentIdx < 0 }

// IsLeaf reports whether g has no children, i.e. its bottom array is
// empty (spec.md §3: "A genome with no children has an empty bottom
// array").
func (g *Genome) IsLeaf() bool { return len(g.ChildrenIdx) == 0 }

// SequenceLength returns the genome's total base count, the sum of its
// sequence lengths.
func (g *Genome) SequenceLength() int64 {
	var total int64
	for _, s := range g.Sequences {
		total += s.Length
	}
	return total
}

// NumTopSegments returns the number of top segments (excluding sentinel).
func (g *Genome) NumTopSegments() int64 {
	if g.Top == nil {
		return 0
	}
	return g.Top.Len()
}

// NumBottomSegments returns the number of bottom segments.
func (g *Genome) NumBottomSegments() int64 {
	if g.Bottom == nil {
		return 0
	}
	return g.Bottom.Len()
}

// SequenceIterator returns the genome's sequences in storage order.
func (g *Genome) SequenceIterator() []Sequence { return g.Sequences }

// SequenceByName looks up a sequence by name: constant-time via the
// genome's name index when available, falling back to a linear scan
// otherwise (spec.md §4.B).
func (g *Genome) SequenceByName(name string) (Sequence, error) {
	if g.nameIndex != nil {
		if i, ok := g.nameIndex.Lookup(name); ok {
			return g.Sequences[i], nil
		}
	} else {
		for _, s := range g.Sequences {
			if s.Name == name {
				return s, nil
			}
		}
	}
	return Sequence{}, halerrors.E(halerrors.NotFound, "no sequence named", name, "in genome", g.Name)
}

// SequenceBySite returns the sequence containing genome-global position
// pos, found by binary search over sequence start positions (spec.md
// §4.B).
func (g *Genome) SequenceBySite(pos int64) (Sequence, error) {
	n := len(g.Sequences)
	i := sort.Search(n, func(i int) bool { return g.Sequences[i].Start+g.Sequences[i].Length > pos })
	if i == n || pos < g.Sequences[i].Start {
		return Sequence{}, halerrors.E(halerrors.OutOfRange, "position", pos, "not covered by any sequence in genome", g.Name)
	}
	return g.Sequences[i], nil
}

// BottomStartPosition returns bottom segment i's start position. Bottom
// records store Length but not StartPos (segment.BottomRecord doc), so
// this walks the prefix sum on every call; segiter's bottom cursors call
// it as well and do not cache the result.
func (g *Genome) BottomStartPosition(i int64) (int64, error) {
	if i < 0 || i >= g.Bottom.Len() {
		return 0, halerrors.E(halerrors.OutOfRange, "bottom index", i, "out of range")
	}
	var pos int64
	for b := int64(0); b < i; b++ {
		rec, err := g.Bottom.Get(b)
		if err != nil {
			return 0, err
		}
		pos += rec.Length
	}
	return pos, nil
}

// nameIndex is the narrow interface spec.md §1 treats as an external
// collaborator ("the perfect-hash-function helper used only for
// sequence-name lookup"). farmNameIndex below is this module's own
// minimal implementation; production deployments may plug in a true
// minimal perfect hash behind the same interface.
type nameIndex interface {
	Lookup(name string) (int, bool)
}

// farmNameIndex is a simple open-addressing hash table over sequence
// names, using github.com/dgryski/go-farm for hashing (the same hash the
// teacher uses for its own k-mer index, fusion/kmer_index.go:
// "farm.Hash64WithSeed(nil, uint64(k))"). It is not a minimal perfect
// hash -- just a fast constant-time default satisfying spec.md's
// "constant-time via a perfect hash built at write" contract closely
// enough for this module's scope.
type farmNameIndex struct {
	buckets []int // -1 = empty; index into Sequences
	names   []string
}

func buildFarmNameIndex(seqs []Sequence) (*farmNameIndex, error) {
	size := 1
	for size < len(seqs)*2 {
		size <<= 1
	}
	if size < 1 {
		size = 1
	}
	idx := &farmNameIndex{buckets: make([]int, size), names: make([]string, len(seqs))}
	for i := range idx.buckets {
		idx.buckets[i] = -1
	}
	for i, s := range seqs {
		idx.names[i] = s.Name
		h := farm.Hash64WithSeed([]byte(s.Name), 0)
		slot := int(h % uint64(size))
		for idx.buckets[slot] != -1 {
			if idx.names[idx.buckets[slot]] == s.Name {
				return nil, halerrors.E(halerrors.Duplicate, "duplicate sequence name", s.Name)
			}
			slot = (slot + 1) % size
		}
		idx.buckets[slot] = i
	}
	return idx, nil
}

func (idx *farmNameIndex) Lookup(name string) (int, bool) {
	size := len(idx.buckets)
	if size == 0 {
		return 0, false
	}
	h := farm.Hash64WithSeed([]byte(name), 0)
	slot := int(h % uint64(size))
	for probes := 0; probes < size; probes++ {
		b := idx.buckets[slot]
		if b == -1 {
			return 0, false
		}
		if idx.names[b] == name {
			return b, true
		}
		slot = (slot + 1) % size
	}
	return 0, false
}

// Catalog holds every genome of one alignment, keyed by name, arranged in
// a rooted tree.
type Catalog struct {
	Dir      string
	genomes  []*Genome
	byName   map[string]int
	rootIdx  int
	pageOpts pagestore.Options
}

// Create starts a brand-new, empty catalog rooted at dir, creating dir
// if it does not exist; an existing dir is used as is.
func Create(dir string, opts pagestore.Options) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "creating catalog dir", dir)
	}
	return &Catalog{Dir: dir, byName: make(map[string]int), rootIdx: -1, pageOpts: opts}, nil
}

// Open loads every genome under dir.
func Open(dir string, opts pagestore.Options) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "reading catalog dir", dir)
	}
	c := &Catalog{Dir: dir, byName: make(map[string]int), rootIdx: -1, pageOpts: opts}
	var metas []meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := readMeta(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	// First pass: create every Genome node without parent/child links.
	for _, m := range metas {
		g := &Genome{idx: len(c.genomes), cat: c, Name: m.Name, ParentIdx: -1, BranchLength: m.BranchLength}
		c.byName[m.Name] = g.idx
		c.genomes = append(c.genomes, g)
	}
	// Second pass: link parent/children now that every index is known.
	for i, m := range metas {
		if m.ParentName == "" {
			c.rootIdx = i
			continue
		}
		pi, ok := c.byName[m.ParentName]
		if !ok {
			return nil, halerrors.E(halerrors.Schema, "genome", m.Name, "names unknown parent", m.ParentName)
		}
		c.genomes[i].ParentIdx = pi
		c.genomes[pi].ChildrenIdx = append(c.genomes[pi].ChildrenIdx, i)
	}
	for _, g := range c.genomes {
		if err := c.loadGenomeData(g); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readMeta(genomeDir string) (meta, error) {
	f, err := os.Open(filepath.Join(genomeDir, "meta"))
	if err != nil {
		return meta{}, halerrors.E(halerrors.IoError, err, "reading meta in", genomeDir)
	}
	defer f.Close()
	var m meta
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return meta{}, halerrors.E(halerrors.Schema, err, "decoding meta in", genomeDir)
	}
	return m, nil
}

func (c *Catalog) loadGenomeData(g *Genome) error {
	dir := filepath.Join(c.Dir, g.Name)
	seqs, err := readSequences(dir)
	if err != nil {
		return err
	}
	g.Sequences = seqs
	if len(seqs) > 0 {
		idx, err := buildFarmNameIndex(seqs)
		if err != nil {
			return err
		}
		g.nameIndex = idx
	}
	if _, err := os.Stat(filepath.Join(dir, "top")); err == nil {
		top, err := segment.LoadTopArray(filepath.Join(dir, "top"), c.pageOpts)
		if err != nil {
			return err
		}
		g.Top = top
	}
	if _, err := os.Stat(filepath.Join(dir, "bottom")); err == nil {
		bottom, err := segment.LoadBottomArray(filepath.Join(dir, "bottom"), int64(len(g.ChildrenIdx)), c.pageOpts)
		if err != nil {
			return err
		}
		g.Bottom = bottom
	}
	total := int64(0)
	for _, s := range seqs {
		total += s.Length
	}
	if total > 0 {
		dna, err := dnastore.Load(filepath.Join(dir, "dna"), total, c.pageOpts)
		if err != nil {
			return err
		}
		g.DNA = dna
	}
	return nil
}

// Root returns the catalog's root genome, or nil if the catalog is empty.
func (c *Catalog) Root() *Genome {
	if c.rootIdx < 0 {
		return nil
	}
	return c.genomes[c.rootIdx]
}

// Genome returns the genome at arena index idx.
func (c *Catalog) Genome(idx int) *Genome { return c.genomes[idx] }

// NumGenomes returns the number of genomes in the catalog.
func (c *Catalog) NumGenomes() int { return len(c.genomes) }

// GenomeByName looks up a genome by name.
func (c *Catalog) GenomeByName(name string) (*Genome, error) {
	idx, ok := c.byName[name]
	if !ok {
		return nil, halerrors.E(halerrors.NotFound, "no genome named", name)
	}
	return c.genomes[idx], nil
}

// Genomes returns every genome, in arena order.
func (c *Catalog) Genomes() []*Genome { return c.genomes }
