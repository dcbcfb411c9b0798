// Package bedio implements the minimal BED text I/O SPEC_FULL.md §1
// leaves external to the core: reading/writing the tab-separated
// chrom/start/end[/strand] records the hal-liftover, hal-mask-extract,
// and hal-synteny command trees consume and produce. This is
// intentionally the thinnest possible reader/writer -- the homology and
// interval-merge logic it feeds lives in packages liftover and synteny.
package bedio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/synteny"
)

// ReadIntervals parses one BED record per line: chrom, start, end, and
// an optional strand column (defaulting to '+' when fewer than 6
// columns are present, matching plain 3-column BED).
func ReadIntervals(r io.Reader) ([]synteny.Interval, error) {
	var out []synteny.Interval
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, halerrors.E(halerrors.Schema, "bed line", lineNo, "has fewer than 3 columns")
		}
		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, halerrors.E(halerrors.Schema, err, "bed line", lineNo, "bad start")
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, halerrors.E(halerrors.Schema, err, "bed line", lineNo, "bad end")
		}
		strand := byte('+')
		if len(fields) >= 6 && len(fields[5]) == 1 {
			strand = fields[5][0]
		}
		out = append(out, synteny.Interval{Chrom: fields[0], Start: start, End: end, Strand: strand})
	}
	if err := sc.Err(); err != nil {
		return nil, halerrors.E(halerrors.IoError, err, "reading bed")
	}
	return out, nil
}

// WriteIntervals writes ivs as 6-column BED records (name column left
// empty, score fixed at 0, matching halLiftover's own bed output shape).
func WriteIntervals(w io.Writer, ivs []synteny.Interval) error {
	bw := bufio.NewWriter(w)
	for _, iv := range ivs {
		strand := iv.Strand
		if strand == 0 {
			strand = '+'
		}
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t.\t0\t%c\n", iv.Chrom, iv.Start, iv.End, strand); err != nil {
			return halerrors.E(halerrors.IoError, err, "writing bed")
		}
	}
	return bw.Flush()
}
