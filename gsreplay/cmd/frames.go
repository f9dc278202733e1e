package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsreplay/datarecording"
	"github.com/sarchlab/gsreplay/tracing"
)

var framesCmd = &cobra.Command{
	Use:   "frames <trace-db>",
	Short: "List the runs and the slowest frames of a trace.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")

		r, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		w := cmd.OutOrStdout()

		runs, err := tracing.Runs(cmd.Context(), r)
		if err != nil {
			return err
		}

		for _, run := range runs {
			status := "finished"
			if run.Aborted {
				status = "aborted: " + run.Error
			}

			fmt.Fprintf(w, "run %s: %s on %s, %d passes, %d frames, %.3fs, %s\n",
				run.RunID, run.Dump, run.Renderer, run.Passes, run.Frames,
				run.Elapsed, status)
		}

		frames, total, err := tracing.SlowestFrames(cmd.Context(), r, runID, limit)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "slowest %d of %d frames:\n", len(frames), total)

		for _, f := range frames {
			fmt.Fprintf(w, "  pass %d frame %d: %.3f ms, %d transactions, "+
				"T %d R %d P %d bytes\n",
				f.Pass, f.Frame, f.Duration*1000, f.Transactions,
				f.TransferBytes, f.FIFOBytes, f.RegisterBytes)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(framesCmd)

	framesCmd.Flags().Int("limit", 10, "number of frames to list")
	framesCmd.Flags().String("run", "", "only frames of this run")
}
