package commands

import (
	"io"
	"strconv"
	"strings"

	"github.com/josephlewis42/gosed/core/vos"
)

var simpleEscapes = map[byte]byte{
	'a':  '\a',
	'b':  '\b',
	'e':  0x1b,
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
}

// expandEscapes interprets the backslash escapes of echo -e in a single
// pass, so an escaped backslash never starts another escape. It returns
// false if \c cut the text short.
func expandEscapes(s string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}

		i++
		switch c := s[i]; c {
		case 'c':
			return sb.String(), false
		case '0':
			n, width := leadingNumber(s[i+1:], 8, 3)
			sb.WriteByte(byte(n))
			i += width
		case 'x':
			n, width := leadingNumber(s[i+1:], 16, 2)
			if width == 0 {
				sb.WriteString(`\x`)
				continue
			}
			sb.WriteByte(byte(n))
			i += width
		default:
			if b, ok := simpleEscapes[c]; ok {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(c)
			}
		}
	}
	return sb.String(), true
}

// leadingNumber parses at most max digits in base from the start of s and
// returns the value and how many bytes it used.
func leadingNumber(s string, base, max int) (uint64, int) {
	width := 0
	for width < len(s) && width < max {
		if _, err := strconv.ParseUint(s[width:width+1], base, 8); err != nil {
			break
		}
		width++
	}
	if width == 0 {
		return 0, 0
	}
	n, _ := strconv.ParseUint(s[:width], base, 16)
	return n, width
}

// Echo implements echo, handy for feeding sed in the playground.
func Echo(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "echo [-neE] [ARG] ...",
		Short: "Display a line of text.",
	}

	opt := cmd.Flags()
	escaped := opt.Bool('e', "interpret backslash escapes")
	raw := opt.Bool('E', "don't interpret backslash escapes (default)")
	noNewline := opt.Bool('n', "do not output the trailing newline")

	return cmd.Run(virtOS, func() int {
		text := strings.Join(opt.Args(), " ")
		if *escaped && !*raw {
			var more bool
			if text, more = expandEscapes(text); !more {
				// \c also drops the newline.
				io.WriteString(virtOS.Stdout(), text)
				return 0
			}
		}

		if !*noNewline {
			text += "\n"
		}
		io.WriteString(virtOS.Stdout(), text)
		return 0
	})
}

var _ vos.ProcessFunc = Echo

func init() {
	addBinCmd("echo", Echo)
}
