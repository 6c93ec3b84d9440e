package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forms-api",
	Short: "Forms API - multi-tenant forms and survey backend",
	Long:  `Forms and survey API with group permissions, per-form access control, public submission intake and observability.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
