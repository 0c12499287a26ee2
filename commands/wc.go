package commands

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/josephlewis42/gosed/core/vos"
)

// wcCount tallies the input written to it.
type wcCount struct {
	name  string
	bytes int
	chars int
	lines int
	words int

	inWord bool
	// partial holds the bytes of a UTF-8 sequence split across writes.
	partial []byte
}

func (w *wcCount) Write(data []byte) (int, error) {
	w.bytes += len(data)

	buf := append(w.partial, data...)
	w.partial = nil
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 && !utf8.FullRune(buf) {
			w.partial = append([]byte(nil), buf...)
			break
		}
		buf = buf[size:]
		w.chars++

		if r == '\n' {
			w.lines++
		}
		if unicode.IsSpace(r) {
			w.inWord = false
		} else if !w.inWord {
			w.inWord = true
			w.words++
		}
	}

	return len(data), nil
}

func (w *wcCount) add(other *wcCount) {
	w.bytes += other.bytes
	w.chars += other.chars
	w.lines += other.lines
	w.words += other.words
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE...]",
		Short: "Print newline, word, and byte counts for each file.",
	}

	opts := cmd.Flags()
	showLines := opts.BoolLong("lines", 'l', "print the newline counts")
	showWords := opts.BoolLong("words", 'w', "print the word counts")
	showBytes := opts.BoolLong("bytes", 'c', "print the byte counts")
	showChars := opts.BoolLong("chars", 'm', "print the character counts")

	return cmd.Run(virtOS, func() int {
		if !*showLines && !*showWords && !*showBytes && !*showChars {
			*showLines, *showWords, *showBytes = true, true, true
		}

		files := opts.Args()
		printCount := func(count *wcCount) {
			var cols []string
			if *showLines {
				cols = append(cols, fmt.Sprint(count.lines))
			}
			if *showWords {
				cols = append(cols, fmt.Sprint(count.words))
			}
			if *showChars {
				cols = append(cols, fmt.Sprint(count.chars))
			}
			if *showBytes {
				cols = append(cols, fmt.Sprint(count.bytes))
			}
			if len(files) > 0 {
				cols = append(cols, count.name)
			}
			fmt.Fprintln(virtOS.Stdout(), strings.Join(cols, " "))
		}

		total := &wcCount{name: "total"}
		status := cmd.RunEachFileOrStdin(virtOS, files, func(name string, fd io.Reader) error {
			count := &wcCount{name: name}
			if _, err := io.Copy(count, fd); err != nil {
				return err
			}
			total.add(count)
			printCount(count)
			return nil
		})

		if len(files) > 1 {
			printCount(total)
		}
		return status
	})
}

var _ vos.ProcessFunc = Wc

func init() {
	addBinCmd("wc", Wc)
}
