package sed

import (
	"fmt"
	"strings"
)

var listEscapes = map[byte]string{
	'\\': `\\`,
	'\a': `\a`,
	'\b': `\b`,
	'\f': `\f`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\v': `\v`,
}

// listLines renders text unambiguously for the l command. Output lines are
// broken with a trailing \ so none is longer than width; a width of 0 or 1
// disables wrapping. The final line ends with $.
func listLines(text string, width int) []string {
	var out []string
	var cur strings.Builder

	for i := 0; i < len(text); i++ {
		c := text[i]

		var piece string
		switch esc, ok := listEscapes[c]; {
		case ok:
			piece = esc
		case c < ' ' || c >= 0x7f:
			piece = fmt.Sprintf(`\%03o`, c)
		default:
			piece = string(c)
		}

		if width > 1 && cur.Len()+len(piece) > width-1 {
			out = append(out, cur.String()+`\`)
			cur.Reset()
		}
		cur.WriteString(piece)
	}

	return append(out, cur.String()+"$")
}
