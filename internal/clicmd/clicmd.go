// Package clicmd holds the bit of glue every cmd/hal-* tree needs and
// the teacher's own cmdutil supplies for its cmd/bio-pamtool/cmd tree:
// a Runner adapter for cmdline.Command.Runner and the exit-code mapping
// from a halerrors.Kind (spec.md §6/§7: 0 success, 1 caught error, 2
// usage error). grailbio/base/cmdutil itself is a dropped teacher
// dependency (see DESIGN.md); RunnerFunc reproduces just the one
// function/method pair this module's cmd trees actually call.
package clicmd

import (
	"fmt"
	"log"
	"os"

	"v.io/x/lib/cmdline"
)

// RunnerFunc adapts a plain function to cmdline.Runner, mirroring
// grailbio/base/cmdutil.RunnerFunc's role in the teacher's
// cmd/bio-pamtool/cmd/main.go.
type RunnerFunc func(env *cmdline.Env, args []string) error

// Run implements cmdline.Runner.
func (f RunnerFunc) Run(env *cmdline.Env, args []string) error { return f(env, args) }

// Main runs root as a standalone program, matching the logging setup
// and global-flag hiding in the teacher's cmd/bio-pamtool/cmd.Run.
func Main(root *cmdline.Command) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(root)
}

// ExitCode maps err to the process exit code spec.md §6/§7 assigns
// halerrors kinds: 0 for nil, 1 for any halerrors-typed failure or
// plain error, 2 is reserved for usage errors the flag parser itself
// raises before a Runner ever runs (cmdline.Main exits 2 for those
// without calling back into this module).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Fatal prints err to stderr and exits with ExitCode(err); a nil err is
// a no-op. The cmd/hal-* tools do not call it: they run through Main,
// which hands their Runner errors to cmdline.Main.
func Fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(ExitCode(err))
}
