package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/txlog"
)

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Rewrite a dump in another container format.",
	Long: `Rewrite a dump in another container format. The formats are ` +
		`chosen by suffix: .xz, .gz, .zst, .lz4, .br, or none for raw.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := txlog.LoadFile(appFs, args[0], txlog.LoadOptions{
			MaxPayload: cfg.MaxPayload,
		})
		if err != nil {
			return err
		}

		if err := l.WriteFile(appFs, args[1]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s), %d transactions\n",
			args[0], container.FormatFromPath(args[0]),
			args[1], container.FormatFromPath(args[1]), l.Len())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
