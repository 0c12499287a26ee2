package sed

import (
	"regexp"
	"strings"
)

// compileRegexp compiles a pattern as written in a script. Basic patterns are
// translated to RE2 first; extended patterns are handed to RE2 as written.
func compileRegexp(line int, pattern, flags string, extended bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, syntaxErrorf(line, "no previous regular expression")
	}

	expr := pattern
	if !extended {
		expr = translateBasic(pattern)
	}

	var mode string
	if strings.ContainsAny(flags, "Ii") {
		mode += "i"
	}
	if strings.ContainsAny(flags, "Mm") {
		mode += "m"
	}
	if mode != "" {
		expr = "(?" + mode + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &RegexError{Line: line, Pattern: pattern, Err: err}
	}
	return re, nil
}

// translateBasic rewrites a POSIX basic regular expression in RE2 syntax.
//
// In a BRE the grouping, interval and alternation operators are escaped and
// their bare forms are literals, which is the reverse of RE2.
func translateBasic(pattern string) string {
	var sb strings.Builder
	n := len(pattern)
	atStart := true

	for i := 0; i < n; i++ {
		c := pattern[i]
		wasStart := atStart
		atStart = false

		switch c {
		case '\\':
			if i+1 >= n {
				sb.WriteString(`\\`)
				continue
			}
			i++
			switch next := pattern[i]; next {
			case '(':
				sb.WriteByte('(')
				atStart = true
			case '|':
				sb.WriteByte('|')
				atStart = true
			case ')', '{', '}', '+', '?':
				sb.WriteByte(next)
			case '`':
				sb.WriteString(`\A`)
			case '\'':
				sb.WriteString(`\z`)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}

		case '(', ')', '{', '}', '|', '+', '?':
			sb.WriteByte('\\')
			sb.WriteByte(c)

		case '*':
			if wasStart {
				sb.WriteString(`\*`)
			} else {
				sb.WriteByte('*')
			}

		case '^':
			if wasStart {
				sb.WriteByte('^')
				atStart = true
			} else {
				sb.WriteString(`\^`)
			}

		case '$':
			rest := pattern[i+1:]
			if rest == "" || strings.HasPrefix(rest, `\)`) || strings.HasPrefix(rest, `\|`) {
				sb.WriteByte('$')
			} else {
				sb.WriteString(`\$`)
			}

		case '[':
			end := bracketEnd(pattern, i)
			if end < 0 {
				// Unterminated, let the regexp engine report it.
				sb.WriteString(pattern[i:])
				return sb.String()
			}
			sb.WriteString(pattern[i : end+1])
			i = end

		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

// bracketEnd returns the index of the ] closing the bracket expression that
// starts at start, or -1.
func bracketEnd(pattern string, start int) int {
	n := len(pattern)
	j := start + 1
	if j < n && pattern[j] == '^' {
		j++
	}
	if j < n && pattern[j] == ']' {
		j++
	}
	for j < n && pattern[j] != ']' {
		if pattern[j] == '[' && j+1 < n && strings.IndexByte(":=.", pattern[j+1]) >= 0 {
			closer := string(pattern[j+1]) + "]"
			if k := strings.Index(pattern[j+2:], closer); k >= 0 {
				j += k + 4
				continue
			}
		}
		j++
	}
	if j >= n {
		return -1
	}
	return j
}
