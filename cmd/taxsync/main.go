// Command taxsync keeps managed term hierarchies in line with their
// versioned definitions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/taxsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
