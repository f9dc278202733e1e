package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/txlog"
)

var infoCmd = &cobra.Command{
	Use:   "info <dump>",
	Short: "Print the header and a summary of a dump.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := txlog.LoadFile(appFs, args[0], txlog.LoadOptions{
			MaxPayload: cfg.MaxPayload,
		})
		if err != nil {
			return err
		}

		printInfo(cmd.OutOrStdout(), args[0], l)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(w io.Writer, path string, l *txlog.Log) {
	h := l.Header()
	s := l.Summary()

	fmt.Fprintf(w, "file:          %s (%s)\n", path, container.FormatFromPath(path))
	fmt.Fprintf(w, "game crc:      %08X\n", h.GameCRC)
	fmt.Fprintf(w, "frozen state:  %d bytes\n", len(h.FrozenState))
	fmt.Fprintf(w, "transactions:  %d\n", s.Transactions)
	fmt.Fprintf(w, "frames:        %d\n", s.Frames)

	for _, p := range []gs.Path{gs.Path1, gs.Path2, gs.Path3, gs.PathGeneric} {
		if s.Transfers[p] == 0 {
			continue
		}

		fmt.Fprintf(w, "%-14s %d transfers, %d bytes\n",
			p.String()+":", s.Transfers[p], s.TransferBytes[p])
	}

	fmt.Fprintf(w, "fifo reads:    %d, %d bytes, largest %d\n",
		s.FIFOReads, s.FIFOBytes, s.MaxFIFORead)
	fmt.Fprintf(w, "reg restores:  %d\n", s.RegisterRestores)
}
