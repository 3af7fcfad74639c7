package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
	quiet   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "repro",
		Short:         "repro reruns FuzzKit testcases against local or downloaded builds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress report rendering; log lines only")

	cmd.AddCommand(newReproduceCmd(flags))
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
