// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gviegas/rendergraph"
	"github.com/gviegas/rendergraph/driver/mock"
	"github.com/gviegas/rendergraph/internal/demo"
)

var validateFrames int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run several frames of the sample graph and check placements stay stable",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&validateFrames, "frames", 4, "number of frames to run")
}

func runValidate(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("rgc validate: Create: %w", err)
	}

	var prev, cur rendergraph.DiagnosticInfo
	for i := 0; i < validateFrames; i++ {
		if err := rg.Update(rendergraph.UpdateInfo{FrameIndex: i}); err != nil {
			return fmt.Errorf("rgc validate: Update(frame %d): %w", i, err)
		}
		rg.GetDiagnosticInfo(&cur)

		if i > 0 && !placementsStable(prev.Resources, cur.Resources) {
			return fmt.Errorf("rgc validate: placements changed between frame %d and %d", i-1, i)
		}
		prev, cur = cur, prev
	}

	fmt.Printf("OK: %d frames, stable placements, %d nodes scheduled\n", validateFrames, rg.NumNodes())
	return nil
}

// placementsStable reports whether every resource present in
// both snapshots kept the same heap and offset, the invariant
// Planner.place's stability bias (see package alloc) is meant
// to uphold across frames whose declared resources don't
// change shape.
func placementsStable(a, b []rendergraph.ResourceInfo) bool {
	byID := make(map[int]rendergraph.ResourceInfo, len(a))
	for _, r := range a {
		byID[r.Resource] = r
	}
	for _, r := range b {
		prev, ok := byID[r.Resource]
		if !ok || !prev.Placed || !r.Placed {
			continue
		}
		if prev.Placement.Heap != r.Placement.Heap || prev.Placement.Offset != r.Placement.Offset {
			return false
		}
	}
	return true
}
