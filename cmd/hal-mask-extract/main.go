// Command hal-mask-extract writes the soft-masked (lowercase) intervals
// of one genome to a BED file. No dedicated core package backs this one
// (SPEC_FULL.md §5): it glues directly to package genome's sequence
// catalog and package dnastore's base accessor, per spec.md's "thin cmd
// package" philosophy for features with no independent core algorithm.
package main

import (
	"fmt"
	"os"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/internal/bedio"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/internal/halflags"
	"github.com/grailbio/hal/pagestore"
)

func newCmdMaskExtract() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "mask-extract",
		Short:    "Write masked intervals of a genome to a BED file",
		ArgsName: "halDir genome destBed",
	}
	opts := halflags.MaskExtractOpts{}
	cmd.Flags.Int64Var(&opts.Extend, "extend", 0, "Extend masked regions by this many bases")
	cmd.Flags.Float64Var(&opts.ExtendPct, "extendPct", 0, "Extend masked regions by this fraction of their length")
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("mask-extract takes halDir, genome, destBed, got %v", argv)
		}
		if opts.Extend != 0 && opts.ExtendPct != 0 {
			return fmt.Errorf("--extend and --extendPct are mutually exclusive")
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		g, err := c.GenomeByName(argv[1])
		if err != nil {
			return err
		}
		ivs, err := extractMasked(g, opts)
		if err != nil {
			return err
		}
		destFile, err := os.Create(argv[2])
		if err != nil {
			return err
		}
		defer destFile.Close()
		return bedio.WriteIntervals(destFile, ivs)
	})
	return cmd
}

func main() {
	clicmd.Main(&cmdline.Command{
		Name:     "hal-mask-extract",
		Short:    "Extract masked intervals from a hal alignment genome",
		LookPath: false,
		Children: []*cmdline.Command{newCmdMaskExtract()},
	})
}
