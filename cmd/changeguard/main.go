package main

import (
	"fmt"
	"os"

	"changeguard/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own findings; this line only surfaces
		// the terminal error for wrappers that capture stderr.
		fmt.Fprintln(os.Stderr, "changeguard:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
