package main

import (
	"fmt"

	"github.com/librescoot/typewriter"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of typewriter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "typewriter version %s\n", typewriter.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
