// Command hal-stats reports genome/sequence dimensions, tree topology,
// branch lengths, and pairwise span over a hal directory, thin flag
// wiring over package halstats per the teacher's cmd/bio-pamtool split
// between a cmd package (flags) and sibling files (logic).
package main

import (
	"fmt"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halstats"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/pagestore"
)

func newCmdGenomes() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "genomes",
		Short:    "List every genome's dimensions",
		ArgsName: "halDir",
	}
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("genomes takes one halDir argument, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		for _, gs := range halstats.Genomes(c) {
			fmt.Fprintf(env.Stdout, "%s\tlen=%d\tseqs=%d\ttop=%d\tbot=%d\tparent=%s\tbranch=%g\n",
				gs.Name, gs.Length, gs.NumSequences, gs.NumTopSegments, gs.NumBottomSegments, gs.ParentName, gs.BranchLength)
		}
		return nil
	})
	return cmd
}

func newCmdSequences() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "sequences",
		Short:    "List one genome's sequence dimensions",
		ArgsName: "halDir genome",
	}
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("sequences takes halDir and genome, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		seqs, err := halstats.Sequences(c, argv[1])
		if err != nil {
			return err
		}
		for _, s := range seqs {
			fmt.Fprintf(env.Stdout, "%s\tstart=%d\tlen=%d\ttop=%d\tbot=%d\n", s.Name, s.Start, s.Length, s.NumTopSegments, s.NumBottomSegments)
		}
		return nil
	})
	return cmd
}

func newCmdTree() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "tree",
		Short:    "Print the genome tree topology",
		ArgsName: "halDir",
	}
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("tree takes one halDir argument, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, halstats.TreeString(c))
		return nil
	})
	return cmd
}

func newCmdSpan() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "span",
		Short:    "Print the branch-length distance between two genomes",
		ArgsName: "halDir genomeA genomeB",
	}
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("span takes halDir, genomeA, genomeB, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		d, err := halstats.Span(c, argv[1], argv[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%g\n", d)
		return nil
	})
	return cmd
}

func newCmdBranchLengths() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "branch-lengths",
		Short:    "List every genome's branch length",
		ArgsName: "halDir",
	}
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("branch-lengths takes one halDir argument, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}
		for _, bl := range halstats.BranchLengths(c) {
			fmt.Fprintf(env.Stdout, "%s\t%g\n", bl.GenomeName, bl.Length)
		}
		return nil
	})
	return cmd
}

func main() {
	root := &cmdline.Command{
		Name:     "hal-stats",
		Short:    "Report dimensions and topology of a hal alignment directory",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdGenomes(),
			newCmdSequences(),
			newCmdTree(),
			newCmdSpan(),
			newCmdBranchLengths(),
		},
	}
	clicmd.Main(root)
}
