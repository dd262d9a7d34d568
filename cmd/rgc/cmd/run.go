// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gviegas/rendergraph"
	"github.com/gviegas/rendergraph/analyzer"
	"github.com/gviegas/rendergraph/driver/mock"
	"github.com/gviegas/rendergraph/internal/demo"
)

var runFrames int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, schedule, allocate, and record the sample graph",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runFrames, "frames", 1, "number of frames to Update before recording")
}

func runRun(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("rgc run: Create: %w", err)
	}

	registerDemoCallbacks(rg)

	for i := 0; i < runFrames; i++ {
		if err := rg.Update(rendergraph.UpdateInfo{FrameIndex: i}); err != nil {
			return fmt.Errorf("rgc run: Update(frame %d): %w", i, err)
		}
	}

	fmt.Printf("recording %d nodes:\n", rg.NumNodes())
	var cmdBuf []string
	err = rg.RecordCommands(rendergraph.RecordInfo{
		Begin:     0,
		NumCmds:   rg.NumNodes(),
		CmdBuffer: &cmdBuf,
	})
	if err != nil {
		return fmt.Errorf("rgc run: RecordCommands: %w", err)
	}
	for _, line := range cmdBuf {
		fmt.Println("  " + line)
	}

	printDiagnostics(rg)
	return nil
}

// registerDemoCallbacks wires a print-only NodeCallback and
// TransitionCallback against the demo program, appending a
// one-line description of each recorded command to the
// *[]string the caller passed as RecordInfo.CmdBuffer.
func registerDemoCallbacks(rg *rendergraph.RenderGraph) {
	record := func(rc *rendergraph.RecordContext) error {
		buf := rc.CmdBuffer.(*[]string)
		*buf = append(*buf, fmt.Sprintf("%-20s queue=%-8v batch=%d", rc.Decl.Name, rc.Queue, rc.Batch))
		return nil
	}
	for _, kind := range []string{
		demo.KindGeometry, demo.KindLighting, demo.KindTAA, demo.KindReadback, demo.KindPresent,
	} {
		rg.RegisterCallback(kind, record)
	}
	rg.RegisterTransitionCallback(func(cmdBuffer any, t analyzer.TransitionInfo) error {
		buf := cmdBuffer.(*[]string)
		*buf = append(*buf, fmt.Sprintf("%-20s resource=%d %v->%v", "[transition]", t.Resource, t.Transition.LayoutBefore, t.Transition.LayoutAfter))
		return nil
	})
}
