// Command hal-synteny merges adjacent same-strand intervals in a BED
// file produced by hal-liftover into coarser synteny blocks, thin flag
// wiring over package synteny, grounded on
// original_source/synteny/impl/psl_merger.cpp's merge pass.
package main

import (
	"fmt"
	"os"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/internal/bedio"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/synteny"
)

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Merge adjacent intervals in a BED file into synteny blocks",
		ArgsName: "srcBed destBed",
	}
	maxGap := cmd.Flags.Int64("maxGap", 0, "Merge intervals separated by up to this many bases")
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("merge takes srcBed and destBed, got %v", argv)
		}
		in, err := os.Open(argv[0])
		if err != nil {
			return err
		}
		defer in.Close()
		ivs, err := bedio.ReadIntervals(in)
		if err != nil {
			return err
		}

		merged := synteny.MergeAdjacentIntervals(ivs, *maxGap)

		destFile, err := os.Create(argv[1])
		if err != nil {
			return err
		}
		defer destFile.Close()
		return bedio.WriteIntervals(destFile, merged)
	})
	return cmd
}

func main() {
	clicmd.Main(&cmdline.Command{
		Name:     "hal-synteny",
		Short:    "Merge liftover output into synteny blocks",
		LookPath: false,
		Children: []*cmdline.Command{newCmdMerge()},
	})
}
