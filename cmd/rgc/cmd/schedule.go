// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gviegas/rendergraph"
	"github.com/gviegas/rendergraph/driver/mock"
	"github.com/gviegas/rendergraph/internal/demo"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Build and schedule the sample graph, printing diagnostics without recording",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	rg, err := rendergraph.Create(rendergraph.CreateInfo{
		Backend:         mock.New(),
		EntryPoint:      demo.Build,
		Flags:           cfg.Alloc.Flags(),
		DefaultSchedule: cfg.Schedule.Flags(),
	})
	if err != nil {
		return fmt.Errorf("rgc schedule: Create: %w", err)
	}

	if err := rg.Update(rendergraph.UpdateInfo{FrameIndex: 0}); err != nil {
		return fmt.Errorf("rgc schedule: Update: %w", err)
	}

	printDiagnostics(rg)
	return nil
}
