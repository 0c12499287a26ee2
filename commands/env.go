package commands

import (
	"fmt"
	"sort"

	"github.com/josephlewis42/gosed/core/vos"
)

// Env prints the environment sorted by name.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func Env(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "env",
		Short: "Print the environment.",
	}

	return cmd.RunE(virtOS, func() error {
		if args := cmd.Flags().Args(); len(args) > 0 {
			return fmt.Errorf("running commands isn't supported: %s", args[0])
		}

		env := virtOS.Environ()
		sort.Strings(env)
		for _, kv := range env {
			fmt.Fprintln(virtOS.Stdout(), kv)
		}
		return nil
	})
}

var _ vos.ProcessFunc = Env

func init() {
	addBinCmd("env", Env)
}
