// Package rearrange implements the rearrangement classifier of spec.md
// §4.I: a state machine walking the breakpoints between maximal gapped
// runs of a genome's top segments, classifying each breakpoint against
// its parent genome's coverage. Because the runs on either side of a
// breakpoint have already absorbed every discontinuity shorter than
// gapThreshold, "adjacent parent positions" is read as "parent coverage
// between the two neighbours stays under gapThreshold" rather than
// requiring the neighbours' parent indices to differ by exactly one --
// the latter would make Nothing unreachable, since gapiter's own run
// boundaries only ever form where an exact-adjacency test already failed.
package rearrange

import (
	"github.com/grailbio/hal/gapiter"
	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/segment"
)

// Category is one of the breakpoint classifications of spec.md §4.I.
type Category int

const (
	Nothing Category = iota
	Inversion
	Insertion
	Deletion
	Duplication
	Transposition
	Other
)

func (c Category) String() string {
	switch c {
	case Nothing:
		return "Nothing"
	case Inversion:
		return "Inversion"
	case Insertion:
		return "Insertion"
	case Deletion:
		return "Deletion"
	case Duplication:
		return "Duplication"
	case Transposition:
		return "Transposition"
	default:
		return "Other"
	}
}

// Classifier walks the breakpoints of one genome's top-segment array,
// each breakpoint sitting between two maximal gapped runs.
type Classifier struct {
	g            *genome.Genome
	gapThreshold int64
	left, right  *gapiter.GappedTopIterator
}

// NewClassifier builds a classifier positioned at the first breakpoint
// at or after startIdx.
func NewClassifier(g *genome.Genome, startIdx, gapThreshold int64) (*Classifier, error) {
	left, err := gapiter.NewGappedTopIterator(g, startIdx, gapThreshold)
	if err != nil {
		return nil, err
	}
	c := &Classifier{g: g, gapThreshold: gapThreshold, left: left}
	if err := c.buildRight(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) buildRight() error {
	lr, err := c.left.GetRight()
	if err != nil {
		return err
	}
	nextIdx := lr.ArrayIndex() + 1
	if nextIdx >= c.g.Top.Len() {
		c.right = nil
		return nil
	}
	right, err := gapiter.NewGappedTopIterator(c.g, nextIdx, c.gapThreshold)
	if err != nil {
		return err
	}
	c.right = right
	return nil
}

// AtEnd reports whether the right endpoint has passed the genome's end,
// i.e. there is no current breakpoint to classify.
func (c *Classifier) AtEnd() bool { return c.right == nil }

// IdentifyNext advances to the next breakpoint; it errors with
// halerrors.OutOfRange once the right endpoint passes the genome end.
func (c *Classifier) IdentifyNext() error {
	if c.right == nil {
		return halerrors.E(halerrors.OutOfRange, "identifyNext past last breakpoint of genome", c.g.Name)
	}
	c.left = c.right
	return c.buildRight()
}

// Classify determines the category of the current breakpoint, the
// boundary between the current left and right maximal gapped runs.
func (c *Classifier) Classify() (Category, error) {
	if c.right == nil {
		return Other, halerrors.E(halerrors.OutOfRange, "no breakpoint to classify in genome", c.g.Name)
	}
	leftTi, err := c.left.GetRight()
	if err != nil {
		return Other, err
	}
	rightTi, err := c.right.GetLeft()
	if err != nil {
		return Other, err
	}
	leftRec, err := c.g.Top.Get(leftTi.ArrayIndex())
	if err != nil {
		return Other, err
	}
	rightRec, err := c.g.Top.Get(rightTi.ArrayIndex())
	if err != nil {
		return Other, err
	}

	leftMapped := leftRec.ParentIdx != segment.NullIndex
	rightMapped := rightRec.ParentIdx != segment.NullIndex
	sameOrient := leftMapped && rightMapped && rightRec.ParentReversed == leftRec.ParentReversed
	sameRange := leftMapped && rightMapped && rightRec.ParentIdx == leftRec.ParentIdx

	// Nothing and Deletion share one test -- how much parent coverage sits
	// between the two neighbours -- differing only in whether that gap
	// clears gapThreshold, so compute it once up front when it applies.
	var skip int64
	if sameOrient && !sameRange {
		skip, err = parentSkip(c.g, leftRec, rightRec)
		if err != nil {
			return Other, err
		}
		if skip < c.gapThreshold {
			return Nothing, nil
		}
	}
	if sameRange && leftRec.ParentReversed != rightRec.ParentReversed {
		return Inversion, nil
	}
	if !leftMapped && leftTi.Length() >= c.gapThreshold {
		return Insertion, nil
	}
	if sameOrient && !sameRange && skip >= c.gapThreshold {
		return Deletion, nil
	}
	if rightMapped {
		if ring, err := c.g.Top.ParalogyRing(rightTi.ArrayIndex()); err == nil && len(ring) > 1 {
			return Duplication, nil
		}
	}
	if leftMapped && rightMapped {
		return Transposition, nil
	}
	return Other, nil
}

// parentSkip sums the parent genome's bottom-segment lengths strictly
// between leftRec's and rightRec's parent positions, used to decide
// whether a gap between two successfully-mapped neighbours is wide
// enough to call a Deletion.
func parentSkip(g *genome.Genome, leftRec, rightRec segment.TopRecord) (int64, error) {
	parent := g.Parent()
	if parent == nil {
		return 0, nil
	}
	lo, hi := leftRec.ParentIdx, rightRec.ParentIdx
	if lo > hi {
		lo, hi = hi, lo
	}
	lo++
	var total int64
	for idx := lo; idx < hi; idx++ {
		if idx < 0 || idx >= parent.Bottom.Len() {
			continue
		}
		rec, err := parent.Bottom.Get(idx)
		if err != nil {
			return 0, err
		}
		total += rec.Length
	}
	return total, nil
}
