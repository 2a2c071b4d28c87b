package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func TcplsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                "tcpls",
		Short:              `tcpls is a language server reachable over TCP`,
		DisableSuggestions: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Initializing Server...")

			return cmd.Help()
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(CmdServe())
	cmd.AddCommand(CmdVersion())

	return cmd
}

func Execute() {
	if err := TcplsCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
