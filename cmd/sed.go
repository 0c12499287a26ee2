package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/josephlewis42/gosed/commands"
	"github.com/josephlewis42/gosed/core/vos"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// sedCmd runs sed against the host filesystem.
var sedCmd = &cobra.Command{
	Use:                "sed [OPTION]... {script-only-if-no-other-script} [FILE]...",
	Short:              "Run the stream editor on local files.",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		args, err := consumeConfigFlag(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		recorder, closer, err := openRecorder(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}

		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		resolver := commands.ConfiguredResolver(commands.SedDefaults{
			LineWrap:       cfg.LineWrap,
			Sandbox:        cfg.Sandbox,
			FollowSymlinks: cfg.FollowSymlinks,
		})
		host := vos.NewHost(afero.NewOsFs(), hostname, resolver, recorder)
		host.SetPTY(vos.PTY{
			Term:  os.Getenv("TERM"),
			IsPTY: isatty.IsTerminal(os.Stdout.Fd()),
		})

		initProc := host.InitProc(
			vos.NewVIOAdapter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
			os.Environ(),
			wd)

		runner, err := initProc.StartProcess("sed", append([]string{"sed"}, args...), &vos.ProcAttr{
			Files: initProc,
		})
		if err != nil {
			return err
		}

		code := runner.Run()
		runner.LogEvent("exit", map[string]interface{}{
			"status": code,
		})

		if code != 0 {
			closer.Close()
			os.Exit(code)
		}
		return nil
	},
}

// consumeConfigFlag handles --config given before the sed arguments, flag
// parsing is disabled so sed sees its own flags untouched.
func consumeConfigFlag(args []string) ([]string, error) {
	for len(args) > 0 {
		switch {
		case strings.HasPrefix(args[0], "--config="):
			cfgPath = strings.TrimPrefix(args[0], "--config=")
			args = args[1:]
		case args[0] == "--config":
			if len(args) < 2 {
				return nil, errors.New("flag needs an argument: --config")
			}
			cfgPath = args[1]
			args = args[2:]
		default:
			return args, nil
		}
	}
	return args, nil
}

func init() {
	rootCmd.AddCommand(sedCmd)
}
