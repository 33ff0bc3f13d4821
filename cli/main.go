package main

import (
	"fmt"
	"os"

	"github.com/devilmonastery/openfolio/cli/internal"
	"github.com/devilmonastery/openfolio/internal/client"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if client.IsAuthError(err) {
			fmt.Fprintln(os.Stderr, "Your session has ended. Please run 'openfolio auth login' again.")
		}
		os.Exit(1)
	}
}
