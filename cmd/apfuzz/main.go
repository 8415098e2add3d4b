// Command apfuzz runs the ActivityPub federation fuzzer.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/apfuzz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "apfuzz:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
