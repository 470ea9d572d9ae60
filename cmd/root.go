package cmd

import (
	"fmt"
	"os"

	"resonate/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resonate",
	Short: "Resonate is a self-hosted music streaming service.",
	Run: func(cmd *cobra.Command, args []string) {
		// Running the bare binary starts the server, same as `resonate server`.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
