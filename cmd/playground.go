package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/josephlewis42/gosed/commands"
	"github.com/josephlewis42/gosed/core/ttylog"
	"github.com/josephlewis42/gosed/core/vos"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var playgroundRecording string

// playgroundCmd runs a shell over an in-memory filesystem to try sed in.
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Try sed in a shell backed by an in-memory filesystem.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		playgroundLogger := log.New(cmd.ErrOrStderr(), "[playground] ", 0)

		fs := afero.NewMemMapFs()
		if err := cfg.Playground.SeedFiles(fs); err != nil {
			return err
		}

		home := cfg.Playground.Home
		if home == "" {
			home = "/"
		}
		if err := fs.MkdirAll(home, 0755); err != nil {
			return err
		}

		recorder, closer, err := openRecorder(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		if cfg.EventLogEnabled() {
			playgroundLogger.Printf("Logging to: %s\n", cfg.EventLog)
		}
		playgroundLogger.Println("Changes are discarded on exit, type help for commands.")
		playgroundLogger.Println(strings.Repeat("=", 80))

		resolver := commands.ConfiguredResolver(commands.SedDefaults{
			LineWrap:       cfg.LineWrap,
			Sandbox:        cfg.Sandbox,
			FollowSymlinks: cfg.FollowSymlinks,
		})
		host := vos.NewHost(fs, cfg.Playground.Hostname, resolver, recorder)
		host.SetPTY(vos.PTY{
			Width:  80,
			Height: 40,
			Term:   "playground",
			IsPTY:  isatty.IsTerminal(os.Stdin.Fd()),
		})

		var files vos.VIO = vos.NewVIOAdapter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if playgroundRecording != "" {
			fd, err := os.Create(playgroundRecording)
			if err != nil {
				return err
			}
			defer fd.Close()

			pty := host.GetPTY()
			files = ttylog.NewRecorder(files, ttylog.NewAsciicastLogSink(fd, ttylog.AsciicastHeader{
				Width:  pty.Width,
				Height: pty.Height,
				Title:  "gosed playground",
			}))
			playgroundLogger.Printf("Recording to: %s\n", playgroundRecording)
		}

		initProc := host.InitProc(
			files,
			[]string{
				commands.EnvHome + "=" + home,
				commands.EnvPrompt + "=" + cfg.Playground.Prompt,
				"PATH=/bin:/usr/bin",
			},
			home)

		runner, err := initProc.StartProcess("/bin/sh", []string{"sh"}, &vos.ProcAttr{
			Files: initProc,
		})
		if err != nil {
			return err
		}

		exitCode := runner.Run()
		runner.LogEvent("exit", map[string]interface{}{
			"status": exitCode,
		})
		fmt.Fprintf(cmd.ErrOrStderr(), "Exit code: %d\n", exitCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)
	playgroundCmd.Flags().StringVar(&playgroundRecording, "record", "", "record the session as an asciicast file")
}
