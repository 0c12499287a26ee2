package commands

import (
	"fmt"
	"os"

	"github.com/josephlewis42/gosed/core/vos"
)

// Mkdir implements a POSIX mkdir command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/mkdir.html
func Mkdir(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "mkdir [-pv] DIRECTORY...",
		Short: "Create directories.",
	}

	parents := cmd.Flags().BoolLong("parents", 'p', "make parent directories as needed, no error if existing")
	verbose := cmd.Flags().BoolLong("verbose", 'v', "print a message for each created directory")

	return cmd.Run(virtOS, func() int {
		dirs := cmd.Flags().Args()
		if len(dirs) == 0 {
			cmd.LogProgramError(virtOS, fmt.Errorf("missing operand"))
			return 1
		}

		mkdir := virtOS.Mkdir
		if *parents {
			mkdir = virtOS.MkdirAll
		}

		status := 0
		for _, dir := range dirs {
			if err := mkdir(dir, os.ModePerm); err != nil {
				cmd.LogProgramError(virtOS, fmt.Errorf("cannot create directory %q: %s", dir, describeErr(err)))
				status = 1
				continue
			}
			if *verbose {
				fmt.Fprintf(virtOS.Stdout(), "mkdir: created directory %q\n", dir)
			}
		}
		return status
	})
}

var _ vos.ProcessFunc = Mkdir

func init() {
	addBinCmd("mkdir", Mkdir)
}
