package genome

import (
	"encoding/binary"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/grailbio/hal/dnastore"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/pagestore"
	"github.com/grailbio/hal/segment"
)

// SeqSpec declares one sequence's dimensions before any data is written,
// per spec.md §4.B "Writing a new genome follows a strict order: declare
// dimensions ... write DNA ... write top segments ... write bottom
// segments ... finalize parse-info".
type SeqSpec struct {
	Name   string
	Length int64
	NumTop int64
	NumBot int64
}

// GenomeWriter drives the one-pass creation of a single genome. It must
// be used in the order: DeclareSequences, WriteDNA* (any order, by
// sequence), SetTopSegment*/SetBottomSegment* (by index), then Finalize.
type GenomeWriter struct {
	c            *Catalog
	name         string
	parentName   string
	branchLength float64
	dir          string

	seqs []Sequence
	dna  *dnastore.Store
	top  *segment.TopArray
	bot  *segment.BottomArray

	numChildrenDeclared int64
}

// CreateGenome begins writing a new genome named name, child of
// parentName ("" for the root), numChildren away from being a leaf (the
// caller must know its own topology up front since it fixes the bottom
// record's child-slot count).
func (c *Catalog) CreateGenome(name, parentName string, branchLength float64, numChildren int64) (*GenomeWriter, error) {
	if _, ok := c.byName[name]; ok {
		return nil, halerrors.E(halerrors.Duplicate, "genome", name, "already exists")
	}
	dir := filepath.Join(c.Dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "creating genome dir", dir)
	}
	return &GenomeWriter{c: c, name: name, parentName: parentName, branchLength: branchLength, dir: dir, numChildrenDeclared: numChildren}, nil
}

// DeclareSequences fixes every sequence's name, length, and segment
// counts. Start positions and first-segment indices are derived here by
// prefix sums, per the tiling invariant of spec.md §3.
func (w *GenomeWriter) DeclareSequences(specs []SeqSpec) error {
	var pos, topIdx, botIdx int64
	seqs := make([]Sequence, len(specs))
	for i, s := range specs {
		if s.Length < 0 || s.NumTop < 0 || s.NumBot < 0 {
			return halerrors.E(halerrors.InvalidArgument, "negative dimension declaring sequence", s.Name)
		}
		seqs[i] = Sequence{
			Name:        s.Name,
			Start:       pos,
			Length:      s.Length,
			FirstTopIdx: topIdx,
			NumTop:      s.NumTop,
			FirstBotIdx: botIdx,
			NumBot:      s.NumBot,
		}
		pos += s.Length
		topIdx += s.NumTop
		botIdx += s.NumBot
	}
	w.seqs = seqs

	if pos > 0 {
		dna, err := dnastore.Create(filepath.Join(w.dir, "dna"), pos, w.c.pageOpts)
		if err != nil {
			return err
		}
		w.dna = dna
	}
	if topIdx > 0 {
		top, err := segment.CreateTopArray(filepath.Join(w.dir, "top"), topIdx, w.c.pageOpts)
		if err != nil {
			return err
		}
		w.top = top
	}
	if botIdx > 0 {
		bot, err := segment.CreateBottomArray(filepath.Join(w.dir, "bottom"), botIdx, w.numChildrenDeclared, w.c.pageOpts)
		if err != nil {
			return err
		}
		w.bot = bot
	}
	return nil
}

// WriteDNA packs and writes seq bases for the named sequence. name must
// have been declared by DeclareSequences.
func (w *GenomeWriter) WriteDNA(name, bases string) error {
	var target *Sequence
	for i := range w.seqs {
		if w.seqs[i].Name == name {
			target = &w.seqs[i]
			break
		}
	}
	if target == nil {
		return halerrors.E(halerrors.NotFound, "sequence", name, "was not declared")
	}
	if int64(len(bases)) != target.Length {
		return halerrors.E(halerrors.InvalidArgument, "sequence", name, "declared length", target.Length, "but got", len(bases), "bases")
	}
	return w.dna.WriteString(target.Start, bases)
}

// SetTopSegment writes top segment i (i is a genome-global top-segment
// index, not sequence-local).
func (w *GenomeWriter) SetTopSegment(i int64, rec segment.TopRecord) error {
	rec.GenomeIdx = int64(len(w.c.genomes))
	return w.top.Set(i, rec)
}

// SetTopSentinel sets the trailing start-position sentinel.
func (w *GenomeWriter) SetTopSentinel(startPos int64) error {
	return w.top.SetSentinelStart(startPos)
}

// SetBottomSegment writes bottom segment i.
func (w *GenomeWriter) SetBottomSegment(i int64, rec segment.BottomRecord) error {
	rec.GenomeIdx = int64(len(w.c.genomes))
	return w.bot.Set(i, rec)
}

// Finalize scans the top and bottom arrays in parallel to set parse
// indices (spec.md §4.B / §4.J "writeParseInfo"), flushes every backing
// array, persists sequence metadata and genome meta, and registers the
// new genome in the catalog arena.
func (w *GenomeWriter) Finalize() (*Genome, error) {
	if w.top != nil && w.bot != nil {
		if err := WriteParseInfo(w.top, w.bot); err != nil {
			return nil, err
		}
	}
	if w.dna != nil {
		if err := w.dna.Flush(); err != nil {
			return nil, err
		}
	}
	if w.top != nil {
		if err := w.top.Flush(); err != nil {
			return nil, err
		}
	}
	if w.bot != nil {
		if err := w.bot.Flush(); err != nil {
			return nil, err
		}
	}
	if err := writeSequences(w.dir, w.seqs); err != nil {
		return nil, err
	}
	if err := writeMeta(w.dir, meta{Name: w.name, ParentName: w.parentName, BranchLength: w.branchLength}); err != nil {
		return nil, err
	}

	idx := len(w.c.genomes)
	g := &Genome{idx: idx, cat: w.c, Name: w.name, ParentIdx: -1, BranchLength: w.branchLength, Sequences: w.seqs, Top: w.top, Bottom: w.bot, DNA: w.dna}
	if len(w.seqs) > 0 {
		ni, err := buildFarmNameIndex(w.seqs)
		if err != nil {
			return nil, err
		}
		g.nameIndex = ni
	}
	if w.parentName == "" {
		w.c.rootIdx = idx
	} else {
		pi, ok := w.c.byName[w.parentName]
		if !ok {
			return nil, halerrors.E(halerrors.NotFound, "parent genome", w.parentName, "not yet created")
		}
		g.ParentIdx = pi
		w.c.genomes[pi].ChildrenIdx = append(w.c.genomes[pi].ChildrenIdx, idx)
	}
	w.c.byName[w.name] = idx
	w.c.genomes = append(w.c.genomes, g)
	return g, nil
}

// WriteParseInfo links every top segment to the bottom segment covering
// its start, and every bottom segment to the top segment covering its
// start, per spec.md §4.B/§4.J. Both arrays tile the same coordinate
// range contiguously, so a single two-pointer sweep suffices.
func WriteParseInfo(top *segment.TopArray, bot *segment.BottomArray) error {
	numTop := top.Len()
	numBot := bot.Len()
	if numTop == 0 || numBot == 0 {
		return nil
	}
	botStarts := make([]int64, numBot+1)
	for b := int64(0); b < numBot; b++ {
		rec, err := bot.Get(b)
		if err != nil {
			return err
		}
		botStarts[b+1] = botStarts[b] + rec.Length
	}

	bi := int64(0)
	for ti := int64(0); ti < numTop; ti++ {
		start, err := top.StartPosition(ti)
		if err != nil {
			return err
		}
		for bi < numBot-1 && botStarts[bi+1] <= start {
			bi++
		}
		rec, err := top.Get(ti)
		if err != nil {
			return err
		}
		rec.BottomParseIdx = bi
		if err := top.Set(ti, rec); err != nil {
			return err
		}
	}

	ti := int64(0)
	for bi := int64(0); bi < numBot; bi++ {
		start := botStarts[bi]
		for ti < numTop-1 {
			end, err := top.EndPosition(ti)
			if err != nil {
				return err
			}
			if end > start {
				break
			}
			ti++
		}
		rec, err := bot.Get(bi)
		if err != nil {
			return err
		}
		rec.TopParseIdx = ti
		if err := bot.Set(bi, rec); err != nil {
			return err
		}
	}
	return nil
}

const maxSeqNameLen = 256

func writeSequences(dir string, seqs []Sequence) error {
	idxPath := filepath.Join(dir, "sequences_idx")
	idxArr, err := pagestore.Create(idxPath, 32, int64(len(seqs)), 4096, pagestore.Options{})
	if err != nil {
		return err
	}
	namePath := filepath.Join(dir, "sequences_name")
	nameArr, err := pagestore.Create(namePath, maxSeqNameLen, int64(len(seqs)), 4096, pagestore.Options{})
	if err != nil {
		return err
	}
	for i, s := range seqs {
		v, err := idxArr.GetUpdate(int64(i))
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(v[0:8], uint64(s.Start))
		binary.LittleEndian.PutUint64(v[8:16], uint64(s.Length))
		binary.LittleEndian.PutUint64(v[16:24], uint64(s.NumTop))
		binary.LittleEndian.PutUint64(v[24:32], uint64(s.NumBot))

		if len(s.Name) >= maxSeqNameLen {
			return halerrors.E(halerrors.InvalidArgument, "sequence name", s.Name, "exceeds max length", maxSeqNameLen)
		}
		nv, err := nameArr.GetUpdate(int64(i))
		if err != nil {
			return err
		}
		for j := range nv {
			nv[j] = 0
		}
		copy(nv, s.Name)
	}
	if err := idxArr.Flush(); err != nil {
		return err
	}
	if err := nameArr.Flush(); err != nil {
		return err
	}
	return nil
}

func readSequences(dir string) ([]Sequence, error) {
	idxPath := filepath.Join(dir, "sequences_idx")
	if _, err := os.Stat(idxPath); err != nil {
		return nil, nil
	}
	idxArr, err := pagestore.Load(idxPath, pagestore.Options{})
	if err != nil {
		return nil, err
	}
	nameArr, err := pagestore.Load(filepath.Join(dir, "sequences_name"), pagestore.Options{})
	if err != nil {
		return nil, err
	}
	n := idxArr.Count()
	seqs := make([]Sequence, n)
	var topIdx, botIdx int64
	for i := int64(0); i < n; i++ {
		v, err := idxArr.Get(i)
		if err != nil {
			return nil, err
		}
		nv, err := nameArr.Get(i)
		if err != nil {
			return nil, err
		}
		end := 0
		for end < len(nv) && nv[end] != 0 {
			end++
		}
		numTop := int64(binary.LittleEndian.Uint64(v[16:24]))
		numBot := int64(binary.LittleEndian.Uint64(v[24:32]))
		seqs[i] = Sequence{
			Name:        string(nv[:end]),
			Start:       int64(binary.LittleEndian.Uint64(v[0:8])),
			Length:      int64(binary.LittleEndian.Uint64(v[8:16])),
			FirstTopIdx: topIdx,
			NumTop:      numTop,
			FirstBotIdx: botIdx,
			NumBot:      numBot,
		}
		topIdx += numTop
		botIdx += numBot
	}
	return seqs, nil
}

func writeMeta(dir string, m meta) error {
	f, err := os.Create(filepath.Join(dir, "meta"))
	if err != nil {
		return halerrors.E(halerrors.IoError, err, "writing meta in", dir)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return halerrors.E(halerrors.IoError, err, "encoding meta in", dir)
	}
	return nil
}
