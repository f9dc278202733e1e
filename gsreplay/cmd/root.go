// Package cmd provides the command-line interface of gsreplay.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/gsreplay/config"
)

// appFs is the filesystem dumps are read from and written to.
var appFs = afero.NewOsFs()

var (
	envFiles []string
	cfg      config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gsreplay",
	Short: "gsreplay replays recorded GS bus sessions.",
	Long: `gsreplay replays recorded GS bus sessions into a renderer for ` +
		`regression and profiling runs. It can also inspect, cut and ` +
		`convert dump files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load(envFiles...)

		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env",
		[]string{".env"}, "dotenv files to read settings from")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
