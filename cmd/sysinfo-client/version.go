package main

import (
	"github.com/spf13/cobra"

	"github.com/HerbHall/sysinfo/internal/democlient"
	"github.com/HerbHall/sysinfo/internal/version"
)

func newVersionCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.printer.Format == democlient.OutputText {
				root.printer.Notef("%s", version.Info())
				return nil
			}
			return root.printer.Print(version.Map())
		},
	}
}
