// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package cmd implements the rgc command-line tool: a thin
// driver over package rendergraph that builds the sample
// program in internal/demo, runs it through Update, and prints
// the resulting schedule and diagnostics, for inspecting
// scheduling and memory-planning behavior without a real
// graphics backend.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "rgc",
	Short: "Render-graph compiler and scheduler inspection tool",
	Long: `rgc builds a sample render graph, runs it through the
build/analyze/schedule/allocate pipeline, and reports the
resulting node order, queue/batch assignment, and resource
placements.

It never touches a real graphics API: resources are sized and
placed against an in-memory mock backend, so rgc runs anywhere
the module builds.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); unset uses all-default flags")
}
