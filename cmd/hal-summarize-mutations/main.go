// Command hal-summarize-mutations prints per-branch substitution and
// rearrangement counts, thin flag wiring over package mutations,
// grounded on original_source/mutations/impl/halSummarizeMutations.cpp's
// CLI surface.
package main

import (
	"fmt"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/internal/halflags"
	"github.com/grailbio/hal/mutations"
	"github.com/grailbio/hal/pagestore"
)

func newCmdSummarizeMutations() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "summarize-mutations",
		Short:    "Print per-branch substitution and rearrangement counts",
		ArgsName: "halDir [genome ...]",
	}
	opts := halflags.MutationOpts{}
	cmd.Flags.Int64Var(&opts.GapThreshold, "gapThreshold", 0, "Maximum gap size absorbed into a colinear run before it counts as a rearrangement breakpoint")
	cmd.Flags.Float64Var(&opts.MaxNFraction, "maxNFraction", 0, "Skip a segment from substitution counting once its N-base fraction exceeds this")
	cmd.Flags.BoolVar(&opts.JustSubs, "justSubs", false, "Only tally substitutions, skip the rearrangement breakpoint scan")
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 1 {
			return fmt.Errorf("summarize-mutations takes halDir and optional genome names, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}

		names := argv[1:]
		var genomes []*genome.Genome
		if len(names) == 0 {
			for _, g := range c.Genomes() {
				if !g.IsRoot() {
					genomes = append(genomes, g)
				}
			}
		} else {
			for _, name := range names {
				g, err := c.GenomeByName(name)
				if err != nil {
					return err
				}
				genomes = append(genomes, g)
			}
		}

		mutOpts := mutations.Options{
			GapThreshold: opts.GapThreshold,
			MaxNFraction: opts.MaxNFraction,
			JustSubs:     opts.JustSubs,
		}
		for _, g := range genomes {
			counts, err := mutations.Summarize(g, mutOpts)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s\tsubs=%d\tn=%d\tins=%d\tdel=%d\tinv=%d\tdup=%d\ttrans=%d\tother=%d\n",
				counts.GenomeName, counts.Substitutions, counts.NBases, counts.Insertions, counts.Deletions,
				counts.Inversions, counts.Duplications, counts.Transpositions, counts.Other)
		}
		return nil
	})
	return cmd
}

func main() {
	clicmd.Main(&cmdline.Command{
		Name:     "hal-summarize-mutations",
		Short:    "Summarize per-branch mutations in a hal alignment",
		LookPath: false,
		Children: []*cmdline.Command{newCmdSummarizeMutations()},
	})
}
