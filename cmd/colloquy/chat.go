package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/colloquy/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat [model]",
	Short: "Talk to a model in the terminal",
	Long: `Starts a conversation with the model at the given path (a YAML file or a
directory holding colloquy.yaml). Each line read is one turn.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.OpsAddr, _ = cmd.Flags().GetString("ops-addr")

		if opts.Watch && opts.Headless {
			return errors.New("--watch and --headless cannot be used together")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunChat(ctx, opts, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session id to resume (default: a new ephemeral id)")
	chatCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, prompt or trace)")
	chatCmd.Flags().BoolP("watch", "w", false, "Reload the model when its files change")
	chatCmd.Flags().Bool("fresh", false, "Discard the stored state of the session first")
	chatCmd.Flags().String("ops-addr", "", "Serve the operations API on this address during the chat")

	// 'chat' is the default command.
	rootCmd.Args = chatCmd.Args
	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
