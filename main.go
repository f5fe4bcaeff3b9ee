package main

import (
	"os"

	"github.com/cottand/narrow/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "narrow [subcommand]",
		Short:        "narrow checks that matches over union types are exhaustive",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
	}
	root.AddCommand(cmd.NewCheckCmd())
	root.AddCommand(cmd.NewFlowCmd())
	return root
}
