package cmd

import (
	"os"
	"time"

	"github.com/josephlewis42/gosed/core/ttylog"
	"github.com/spf13/cobra"
)

var playMaxPause time.Duration

// playCmd replays a recorded playground session
var playCmd = &cobra.Command{
	Use:   "play RECORDING",
	Short: "Play a recorded playground session.",
	Long:  `Plays an asciicast recording made with playground --record back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		output := ttylog.NewClientOutput(cmd.OutOrStdout())
		return ttylog.Replay(ttylog.NewAsciicastLogSource(fd), ttylog.NewRealTimePlayback(playMaxPause, output))
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().DurationVar(&playMaxPause, "max-pause", 2*time.Second, "longest pause between outputs, 0 plays without pausing")
}
