package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/colloquy/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate [model]",
	Short: "Check a model for errors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunValidate(cmd.Context(), options(cmd, args), cmd.OutOrStdout())
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [model]",
	Short: "Print the model as a Mermaid flowchart",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunGraph(cmd.Context(), options(cmd, args), cmd.OutOrStdout())
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe [model]",
	Short: "Describe the events and states of a model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		return cli.RunDescribe(cmd.Context(), options(cmd, args), cmd.OutOrStdout(), raw)
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [model]",
	Short: "List the sessions in the configured session store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessions(cmd.Context(), options(cmd, args), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, graphCmd, describeCmd, sessionsCmd)

	describeCmd.Flags().Bool("raw", false, "Print markdown without rendering it")
}
