package cmd

import (
	"fmt"

	"github.com/harry-hov/tcpls/internal/version"
	"github.com/spf13/cobra"
)

func CmdVersion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tcpls version information",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion(cmd.Context()))
			return nil
		},
	}

	return cmd
}
