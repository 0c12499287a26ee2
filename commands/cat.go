package commands

import (
	"bufio"
	"fmt"
	"io"

	"github.com/josephlewis42/gosed/core/vos"
)

// Cat implements the POSIX cat command with the common -n and -E extensions.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/cat.html
func Cat(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "cat [-nEu] [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	opts := cmd.Flags()
	number := opts.BoolLong("number", 'n', "number all output lines")
	showEnds := opts.BoolLong("show-ends", 'E', "display $ at end of each line")
	_ = opts.Bool('u', "ignored, output is always unbuffered")

	return cmd.Run(virtOS, func() int {
		w := virtOS.Stdout()
		if !*number && !*showEnds {
			return cmd.RunEachFileOrStdin(virtOS, opts.Args(), func(_ string, fd io.Reader) error {
				_, err := io.Copy(w, fd)
				return err
			})
		}

		// Line numbers continue across files.
		lineNo := 1
		return cmd.RunEachFileOrStdin(virtOS, opts.Args(), func(_ string, fd io.Reader) error {
			reader := bufio.NewReader(fd)
			for {
				line, err := reader.ReadString('\n')
				if line != "" {
					terminated := line[len(line)-1] == '\n'
					if terminated {
						line = line[:len(line)-1]
					}
					if *number {
						fmt.Fprintf(w, "%6d\t", lineNo)
						lineNo++
					}
					fmt.Fprint(w, line)
					if terminated {
						if *showEnds {
							fmt.Fprint(w, "$")
						}
						fmt.Fprintln(w)
					}
				}

				switch {
				case err == io.EOF:
					return nil
				case err != nil:
					return err
				}
			}
		})
	})
}

var _ vos.ProcessFunc = Cat

func init() {
	addBinCmd("cat", Cat)
}
