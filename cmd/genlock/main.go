// Command genlock manages a tiered generation catalog and per-asset unlock
// and activation ledger backed by SQLite.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/genlock/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "genlock:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
