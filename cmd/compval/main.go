// The compval binary is the command line interface: offline valuations,
// schema migrations, and configuration inspection.
package main

import (
	"fmt"
	"os"

	"github.com/propsage/compval/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
