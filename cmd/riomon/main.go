// Command riomon is a small demo CLI for the rio runtime: it runs a
// single-threaded TCP echo server on top of it and shows the driver's
// trace output live, either as a terminal dashboard or a plain log.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "riomon",
	Short:   "Run and observe a demo TCP echo server on the rio runtime",
	Version: "0.1.0",
}

func main() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
