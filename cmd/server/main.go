package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultExitCode = 1

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(defaultExitCode)
	}
}

func newRootCommand() *cobra.Command {
	serve := &serveCommand{configPath: "."}

	cmd := &cobra.Command{
		Use:           "entityhistory",
		Short:         "Entity version history service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVarP(&serve.configPath, "config", "c", serve.configPath, "Directory containing config.yaml")

	cmd.AddCommand(
		newServeCommand(serve),
		newMigrateCommand(&serve.configPath),
	)
	return cmd
}
