package main

import (
	"os"

	"github.com/grovetools/hpcode/cli"
	"github.com/grovetools/hpcode/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"hpcode",
		"Browser editor sessions on compute nodes",
	)

	rootCmd.AddCommand(cmd.NewStartCmd())
	rootCmd.AddCommand(cmd.NewStopCmd())
	rootCmd.AddCommand(cmd.NewListCmd())
	rootCmd.AddCommand(cmd.NewAgentCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand())

	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
