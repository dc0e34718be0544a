// tl is the CLI for tasklanes, a file-backed issue tracker that schedules
// work in lanes.
package main

import (
	"fmt"
	"os"

	"tasklanes/internal/cmd"
)

var (
	run    = func() error { return cmd.Execute() }
	osExit = os.Exit
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}
