package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openresearch",
		Short: "Research orchestration engine",
		Long: `OpenResearch turns a topic into a written report: it asks clarifying
questions, proposes web searches for approval, runs them and compiles the
results with a language model.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to the YAML config file")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newRunCommand())
	return cmd
}
