package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/colloquy"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Colloquy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "colloquy %s\n", colloquy.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
