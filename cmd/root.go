package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"

	"github.com/josephlewis42/gosed/core/config"
	"github.com/josephlewis42/gosed/core/logger"
	"github.com/josephlewis42/gosed/core/vos"
	"github.com/spf13/cobra"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openRecorder opens the configured event log, events are discarded if it's
// disabled. The returned closer must be called when recording is done.
func openRecorder(cfg *config.Configuration) (vos.EventRecorder, io.Closer, error) {
	if !cfg.EventLogEnabled() {
		return vos.NopEventRecorder{}, io.NopCloser(nil), nil
	}

	fd, err := cfg.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}

	return logger.NewJSONLinesLogRecorder(fd).NewSession(), fd, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gosed",
	Short: "Stream editor",
	Long:  `A sed stream editor with an in-memory playground to try scripts in.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
