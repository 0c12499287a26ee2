package sed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies what a Command does.
type Kind int

const (
	KindComment Kind = iota
	KindLabel
	KindBlockStart
	KindBlockEnd
	KindPrint
	KindPrintFirstLine
	KindLineNumber
	KindDelete
	KindDeleteFirstLine
	KindNext
	KindNextAppend
	KindHold
	KindHoldAppend
	KindGet
	KindGetAppend
	KindExchange
	KindSubstitute
	KindTest
	KindTestNot
	KindBranch
	KindInsert
	KindAppend
	KindChange
	KindQuit
	KindQuitSilent
	KindReadFile
	KindReadLine
	KindWriteFile
	KindWriteFirstLine
	KindTransliterate
	KindList
	KindZap
	KindFilename
)

// kindLetters maps each kind to the character that introduces it in a
// script.
var kindLetters = map[Kind]byte{
	KindComment:         '#',
	KindLabel:           ':',
	KindBlockStart:      '{',
	KindBlockEnd:        '}',
	KindPrint:           'p',
	KindPrintFirstLine:  'P',
	KindLineNumber:      '=',
	KindDelete:          'd',
	KindDeleteFirstLine: 'D',
	KindNext:            'n',
	KindNextAppend:      'N',
	KindHold:            'h',
	KindHoldAppend:      'H',
	KindGet:             'g',
	KindGetAppend:       'G',
	KindExchange:        'x',
	KindSubstitute:      's',
	KindTest:            't',
	KindTestNot:         'T',
	KindBranch:          'b',
	KindInsert:          'i',
	KindAppend:          'a',
	KindChange:          'c',
	KindQuit:            'q',
	KindQuitSilent:      'Q',
	KindReadFile:        'r',
	KindReadLine:        'R',
	KindWriteFile:       'w',
	KindWriteFirstLine:  'W',
	KindTransliterate:   'y',
	KindList:            'l',
	KindZap:             'z',
	KindFilename:        'F',
}

var letterKinds = func() map[byte]Kind {
	out := make(map[byte]Kind, len(kindLetters))
	for k, v := range kindLetters {
		out[v] = k
	}
	return out
}()

// Letter returns the script character for the kind.
func (k Kind) Letter() byte {
	return kindLetters[k]
}

func (k Kind) String() string {
	if l, ok := kindLetters[k]; ok {
		return string(l)
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// isBranch reports whether the kind jumps to a label.
func (k Kind) isBranch() bool {
	return k == KindBranch || k == KindTest || k == KindTestNot
}

// AddressKind identifies the type of an Address.
type AddressKind int

const (
	// AddrLine matches an absolute input line number.
	AddrLine AddressKind = iota
	// AddrLast matches the last line of input ($).
	AddrLast
	// AddrRegexp matches when the pattern space matches a regular expression.
	AddrRegexp
	// AddrStep matches every Step lines starting at Line (first~step).
	AddrStep
	// AddrRelative ends a range Step lines after it opened (addr1,+N).
	AddrRelative
	// AddrMultiple ends a range on the next line that is a multiple of Step
	// (addr1,~N).
	AddrMultiple
)

// Address selects the lines a command applies to.
type Address struct {
	Kind AddressKind
	// Line is the line number for AddrLine and the first line for AddrStep.
	Line int
	// Step is the step for AddrStep and the count of AddrRelative and
	// AddrMultiple.
	Step int
	// Regexp is the compiled pattern for AddrRegexp.
	Regexp *regexp.Regexp
	// Source is the pattern as written in the script.
	Source string
	// Flags holds the I and M modifiers as written.
	Flags string
}

func (a *Address) String() string {
	switch a.Kind {
	case AddrLine:
		return strconv.Itoa(a.Line)
	case AddrLast:
		return "$"
	case AddrStep:
		return fmt.Sprintf("%d~%d", a.Line, a.Step)
	case AddrRelative:
		return "+" + strconv.Itoa(a.Step)
	case AddrMultiple:
		return "~" + strconv.Itoa(a.Step)
	default:
		return "/" + escapeDelim(a.Source, '/') + "/" + a.Flags
	}
}

// Substitution holds the arguments of an s command.
type Substitution struct {
	Regexp *regexp.Regexp
	// Pattern and Replacement hold the text as written in the script.
	Pattern     string
	Replacement string
	// Global replaces every match.
	Global bool
	// Count replaces only the Nth match; it takes priority over Global.
	Count int
	// Print prints the pattern space if a replacement was made.
	Print bool
	// Flags holds the I and M modifiers as written.
	Flags string
	// WriteFile receives the pattern space if a replacement was made.
	WriteFile string

	// template is Replacement in regexp.Expand syntax.
	template string
}

func (s *Substitution) flagString() string {
	var sb strings.Builder
	if s.Global {
		sb.WriteByte('g')
	}
	if s.Count > 0 {
		sb.WriteString(strconv.Itoa(s.Count))
	}
	if s.Print {
		sb.WriteByte('p')
	}
	sb.WriteString(s.Flags)
	if s.WriteFile != "" {
		sb.WriteString("w " + s.WriteFile)
	}
	return sb.String()
}

// Transliteration holds the arguments of a y command.
type Transliteration struct {
	From []rune
	To   []rune
}

// Map returns the replacement for r.
func (t *Transliteration) Map(r rune) rune {
	for i, f := range t.From {
		if f == r {
			return t.To[i]
		}
	}
	return r
}

// Command is a single compiled script instruction. Commands are immutable
// once compiled; their index in Script.Commands is their branch target.
type Command struct {
	Addr1 *Address
	Addr2 *Address
	// Negate inverts the address selection (!).
	Negate bool
	Kind   Kind
	// Line is the script line the command was read from.
	Line int

	// Label is the label name for :, b, t and T. Empty on a branch means
	// the end of the script.
	Label string
	// Text is the literal text for a, i and c.
	Text string
	// Filename is the target of r, R, w and W.
	Filename string
	// Subst holds the arguments of s.
	Subst *Substitution
	// Translit holds the arguments of y.
	Translit *Transliteration
	// Int is the exit code of q and Q, or the wrap width of l.
	Int int
	// HasInt is set if Int was given explicitly.
	HasInt bool
	// BlockEnd is the index of the } that closes a {.
	BlockEnd int
}

func (c *Command) addressString() string {
	var sb strings.Builder
	if c.Addr1 != nil {
		sb.WriteString(c.Addr1.String())
	}
	if c.Addr2 != nil {
		sb.WriteByte(',')
		sb.WriteString(c.Addr2.String())
	}
	if c.Negate {
		sb.WriteByte('!')
	}
	return sb.String()
}

// String renders the command in canonical script syntax.
func (c *Command) String() string {
	addr := c.addressString()
	letter := string(c.Kind.Letter())

	switch c.Kind {
	case KindComment:
		return "#"
	case KindLabel:
		return ":" + c.Label
	case KindBranch, KindTest, KindTestNot:
		if c.Label == "" {
			return addr + letter
		}
		return addr + letter + " " + c.Label
	case KindInsert, KindAppend, KindChange:
		return addr + letter + "\\\n" + strings.ReplaceAll(c.Text, "\n", "\\\n")
	case KindReadFile, KindReadLine, KindWriteFile, KindWriteFirstLine:
		return addr + letter + " " + c.Filename
	case KindSubstitute:
		s := c.Subst
		return fmt.Sprintf("%ss/%s/%s/%s", addr, escapeDelim(s.Pattern, '/'), escapeDelim(s.Replacement, '/'), s.flagString())
	case KindTransliterate:
		t := c.Translit
		return fmt.Sprintf("%sy/%s/%s/", addr, escapeDelim(string(t.From), '/'), escapeDelim(string(t.To), '/'))
	case KindQuit, KindQuitSilent, KindList:
		if c.HasInt {
			return addr + letter + strconv.Itoa(c.Int)
		}
		return addr + letter
	default:
		return addr + letter
	}
}

// Script is a compiled, immutable sed program.
type Script struct {
	Commands []Command

	// labels maps each declared label to the index of its : command.
	labels map[string]int
}

// Labels returns a copy of the label table.
func (s *Script) Labels() map[string]int {
	out := make(map[string]int, len(s.labels))
	for k, v := range s.labels {
		out[k] = v
	}
	return out
}

// String renders the program one command per line, indenting blocks.
func (s *Script) String() string {
	var sb strings.Builder
	depth := 0
	for i := range s.Commands {
		cmd := &s.Commands[i]
		if cmd.Kind == KindComment {
			continue
		}
		if cmd.Kind == KindBlockEnd && depth > 0 {
			depth--
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(cmd.String())
		sb.WriteByte('\n')
		if cmd.Kind == KindBlockStart {
			depth++
		}
	}
	return sb.String()
}

// escapeDelim escapes unescaped occurrences of delim in text.
func escapeDelim(text string, delim byte) string {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] == '\\' && i+1 < len(text):
			sb.WriteByte(text[i])
			sb.WriteByte(text[i+1])
			i++
		case text[i] == delim:
			sb.WriteByte('\\')
			sb.WriteByte(delim)
		case text[i] == '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(text[i])
		}
	}
	return sb.String()
}
