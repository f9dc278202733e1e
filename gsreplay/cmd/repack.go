package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsreplay/txlog"
)

var repackCmd = &cobra.Command{
	Use:   "repack <dump>",
	Short: "Cut a dump after its first frames.",
	Long: `Write the header and the transactions up to the end of frame ` +
		`--frames+1 of a dump into ` +
		`<dump>_repack.gs, or into --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, _ := cmd.Flags().GetInt("frames")
		if frames <= 0 {
			return fmt.Errorf("--frames must be positive, got %d", frames)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = txlog.RepackPath(args[0])
		}

		return repack(cmd, args[0], out, frames)
	},
}

func init() {
	rootCmd.AddCommand(repackCmd)

	repackCmd.Flags().Int("frames", 1, "number of frames to keep")
	repackCmd.Flags().String("out", "", "output file")
}

func repack(cmd *cobra.Command, src, dst string, frames int) error {
	l, err := txlog.Repack(appFs, src, dst, frames, cfg.MaxPayload)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "repacked %d frames, %d transactions into %s\n",
		l.Frames(), l.Len(), dst)

	return nil
}
