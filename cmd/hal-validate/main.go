// Command hal-validate runs package halvalidate's invariant checks over
// a hal directory and reports every violation found, exiting non-zero
// if any genome fails, following original_source/validate/halValidateMain.cpp's
// "report everything, then exit 1" behavior rather than stopping at the
// first failure.
package main

import (
	"fmt"

	"v.io/x/lib/cmdline"

	"github.com/grailbio/hal/genome"
	"github.com/grailbio/hal/halerrors"
	"github.com/grailbio/hal/halvalidate"
	"github.com/grailbio/hal/internal/clicmd"
	"github.com/grailbio/hal/pagestore"
)

func newCmdValidate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "validate",
		Short:    "Validate the structural invariants of a hal directory",
		ArgsName: "halDir",
	}
	genomeFlag := cmd.Flags.String("genome", "", "Validate only this genome instead of the whole catalog")
	cmd.Runner = clicmd.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("validate takes one halDir argument, got %v", argv)
		}
		c, err := genome.Open(argv[0], pagestore.Options{})
		if err != nil {
			return err
		}

		var errs []error
		if *genomeFlag != "" {
			g, err := c.GenomeByName(*genomeFlag)
			if err != nil {
				return err
			}
			errs = halvalidate.Genome(g)
		} else {
			errs = halvalidate.Catalog(c)
		}

		for _, e := range errs {
			fmt.Fprintln(env.Stderr, e)
		}
		if len(errs) > 0 {
			return halerrors.E(halerrors.Invariant, fmt.Sprintf("%d invariant violation(s) found", len(errs)))
		}
		fmt.Fprintln(env.Stdout, "OK")
		return nil
	})
	return cmd
}

func main() {
	clicmd.Main(&cmdline.Command{
		Name:     "hal-validate",
		Short:    "Validate structural invariants of a hal alignment directory",
		LookPath: false,
		Children: []*cmdline.Command{newCmdValidate()},
	})
}
