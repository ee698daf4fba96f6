package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cadenzahq/cadenza"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cadenza",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cadenza version %s\n", strings.TrimSpace(cadenza.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
