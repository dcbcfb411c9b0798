// Command hal-liftover maps BED intervals from one genome onto another,
// thin flag/file-I/O wiring over package liftover, grounded on
// original_source/liftover/impl/halLiftover.cpp's CLI surface.
package main

import (
	"fmt"
	"os"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/internal/bedio"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/internal/halflags"
	"github.com/grailbio/hal/liftover"
	"github.com/grailbio/hal/pagestore"
)

func newCmdLiftover() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "liftover",
		Short:    "Map BED intervals from one genome onto another",
		ArgsName: "halDir srcGenome srcBed tgtGenome destBed",
	}
	opts := halflags.LiftoverOpts{}
	cmd.Flags.BoolVar(&opts.NoDupes, "noDupes", false, "Follow only the canonical path through duplications")
	cmd.Flags.Int64Var(&opts.CoalescenceLimit, "coalescenceLimit", 0, "Merge adjacent output intervals separated by up to this many bases")
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 5 {
			return fmt.Errorf("liftover takes halDir, srcGenome, srcBed, tgtGenome, destBed, got %v", argv)
		}
		halDir, srcGenome, srcBedPath, tgtGenome, destBedPath := argv[0], argv[1], argv[2], argv[3], argv[4]

		c, err := genome.Open(halDir, pagestore.Options{})
		if err != nil {
			return err
		}

		in, err := os.Open(srcBedPath)
		if err != nil {
			return err
		}
		defer in.Close()
		srcIvs, err := bedio.ReadIntervals(in)
		if err != nil {
			return err
		}

		var out []liftover.Interval
		for _, iv := range srcIvs {
			mapped, err := liftover.Range(c, srcGenome, iv, tgtGenome, liftover.Options{
				NoDupes:          opts.NoDupes,
				CoalescenceLimit: opts.CoalescenceLimit,
			})
			if err != nil {
				return err
			}
			out = append(out, mapped...)
		}

		destFile, err := os.Create(destBedPath)
		if err != nil {
			return err
		}
		defer destFile.Close()
		return bedio.WriteIntervals(destFile, out)
	})
	return cmd
}

func main() {
	clicmd.Main(&cmdline.Command{
		Name:     "hal-liftover",
		Short:    "Map BED intervals between genomes in a hal alignment",
		LookPath: false,
		Children: []*cmdline.Command{newCmdLiftover()},
	})
}
