package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operator tool for the rental billing ledger",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		MigrateCmd(),
		ScheduleCmd(),
		SweepCmd(),
		GenerateCmd(),
		TokenCmd(),
		NotifyTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
