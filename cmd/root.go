// Package cmd defines and implements the CLI commands for the imageingest
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imageingest",
		Short: "Batch image acquisition for catalog items.",
		Long: `imageingest walks a catalog of inventory items and acquires one
normalized product image per item: it builds a search query from the item's
title, ranks the discovered candidates, downloads the best one, re-encodes
it as a bounded JPEG, and stores it under the item's key.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newIngestCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
