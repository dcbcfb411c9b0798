// Package halstats provides read-only aggregation over an open
// genome.Catalog, grounding SPEC_FULL.md's supplemented "stats data
// provider" (stats/inc/halStats.h in original_source/): genome counts,
// per-sequence dimensions, the tree topology as a string, the span
// between two genomes, and branch lengths. It adds no storage of its
// own -- every field here is derived from genome.Catalog at call time.
package halstats

import (
	"fmt"
	"strings"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
)

// GenomeStats is one genome's summary dimensions.
type GenomeStats struct {
	Name            string
	Length          int64
	NumSequences    int
	NumTopSegments  int64
	NumBottomSegments int64
	NumChildren     int
	ParentName      string
	BranchLength    float64
}

// Genomes returns one GenomeStats per genome in the catalog, in arena
// order.
func Genomes(c *genome.Catalog) []GenomeStats {
	out := make([]GenomeStats, 0, c.NumGenomes())
	for _, g := range c.Genomes() {
		parentName := ""
		if p := g.Parent(); p != nil {
			parentName = p.Name
		}
		out = append(out, GenomeStats{
			Name:              g.Name,
			Length:            g.SequenceLength(),
			NumSequences:      len(g.Sequences),
			NumTopSegments:    g.NumTopSegments(),
			NumBottomSegments: g.NumBottomSegments(),
			NumChildren:       len(g.ChildrenIdx),
			ParentName:        parentName,
			BranchLength:      g.BranchLength,
		})
	}
	return out
}

// SequenceStats is one sequence's summary dimensions.
type SequenceStats struct {
	Name              string
	GenomeName        string
	Start             int64
	Length            int64
	NumTopSegments    int64
	NumBottomSegments int64
}

// Sequences returns one SequenceStats per sequence of the named genome,
// in storage order.
func Sequences(c *genome.Catalog, genomeName string) ([]SequenceStats, error) {
	g, err := c.GenomeByName(genomeName)
	if err != nil {
		return nil, err
	}
	out := make([]SequenceStats, 0, len(g.Sequences))
	for _, s := range g.Sequences {
		out = append(out, SequenceStats{
			Name: s.Name, GenomeName: g.Name, Start: s.Start, Length: s.Length,
			NumTopSegments: s.NumTop, NumBottomSegments: s.NumBot,
		})
	}
	return out, nil
}

// TreeString renders the catalog's tree topology as a Newick-shaped
// string (parenthesized children, branch lengths after a colon), rooted
// at the catalog's root genome. Newick *parsing* is out of scope
// (spec.md §1); this is write-only rendering for the `stats --tree` CLI
// surface.
func TreeString(c *genome.Catalog) string {
	root := c.Root()
	if root == nil {
		return ";"
	}
	return renderSubtree(root) + ";"
}

func renderSubtree(g *genome.Genome) string {
	if g.IsLeaf() {
		return g.Name
	}
	parts := make([]string, len(g.ChildrenIdx))
	for i := range g.ChildrenIdx {
		child := g.Child(i)
		parts[i] = fmt.Sprintf("%s:%g", renderSubtree(child), child.BranchLength)
	}
	return "(" + strings.Join(parts, ",") + ")" + g.Name
}

// Span reports the branch-length distance between two genomes in the
// same tree, walking each up to their most recent common ancestor.
func Span(c *genome.Catalog, aName, bName string) (float64, error) {
	a, err := c.GenomeByName(aName)
	if err != nil {
		return 0, err
	}
	b, err := c.GenomeByName(bName)
	if err != nil {
		return 0, err
	}
	ancestor := make(map[int]float64)
	var total float64
	for cur := a; ; {
		ancestor[cur.Index()] = total
		if cur.IsRoot() {
			break
		}
		total += cur.BranchLength
		cur = cur.Parent()
	}
	total = 0
	for cur := b; ; {
		if d, ok := ancestor[cur.Index()]; ok {
			return d + total, nil
		}
		if cur.IsRoot() {
			break
		}
		total += cur.BranchLength
		cur = cur.Parent()
	}
	return 0, halerrors.E(halerrors.Invariant, "genomes", aName, bName, "share no common ancestor")
}

// BranchLength is one genome's distance to its parent, keyed by genome
// name. BranchLengths returns every genome's branch length, in arena
// order, each as recorded when the genome was created (the root's
// included).
type BranchLength struct {
	GenomeName string
	Length     float64
}

func BranchLengths(c *genome.Catalog) []BranchLength {
	out := make([]BranchLength, 0, c.NumGenomes())
	for _, g := range c.Genomes() {
		out = append(out, BranchLength{GenomeName: g.Name, Length: g.BranchLength})
	}
	return out
}
