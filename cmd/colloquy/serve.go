package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/colloquy/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve [model]",
	Short: "Serve the operations API",
	Long: `Serves health, model information, the Mermaid graph, session inspection,
live session events (SSE) and prometheus metrics over HTTP. Sessions are read
from the configured SESSION_STORE, so a shared redis or bolt store exposes the
conversations of other processes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		addr, _ := cmd.Flags().GetString("addr")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunServe(ctx, opts, addr, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the model when its files change")
}
