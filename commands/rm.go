package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/josephlewis42/gosed/core/vos"
)

// Rm implements a POSIX rm command.
func Rm(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "rm [-rf] FILE...",
		Short: "Remove files or directories.",
	}

	recursive := cmd.Flags().BoolLong("recursive", 'r', "remove directories and their contents recursively")
	force := cmd.Flags().BoolLong("force", 'f', "ignore nonexistent files")

	return cmd.Run(virtOS, func() int {
		status := 0
		for _, file := range cmd.Flags().Args() {
			if err := rmOne(virtOS, file, *recursive); err != nil {
				if *force && errors.Is(err, fs.ErrNotExist) {
					continue
				}
				cmd.LogProgramError(virtOS, fmt.Errorf("cannot remove %q: %s", file, describeErr(err)))
				status = 1
			}
		}
		return status
	})
}

func rmOne(virtOS vos.VOS, file string, recursive bool) error {
	stat, err := virtOS.Stat(file)
	switch {
	case err != nil:
		return err
	case !stat.IsDir():
		return virtOS.Remove(file)
	case !recursive:
		return errors.New("Is a directory")
	default:
		return virtOS.RemoveAll(file)
	}
}

var _ vos.ProcessFunc = Rm

func init() {
	addBinCmd("rm", Rm)
}
