package main

import (
	"os"

	"github.com/householdhq/budget/cmd/do/cmd"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and maintenance tools for the budget API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.DBCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
