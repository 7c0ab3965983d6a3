package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/colloquy/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "colloquy",
	Short: "Colloquy runs conversational state machines",
	Long: `Colloquy loads a dialogue model written in YAML, recognizes what the user
says and walks the model's states, running actions along the way.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default colloquy.config.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every lifecycle event to stderr")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// options reads the shared flags. The model path is the first argument and
// defaults to the current directory.
func options(cmd *cobra.Command, args []string) cli.Options {
	opts := cli.Options{ModelPath: "."}
	if len(args) > 0 {
		opts.ModelPath = args[0]
	}
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	opts.LogLevel, _ = cmd.Flags().GetString("log-level")
	return opts
}
