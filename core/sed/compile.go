package sed

import (
	"strconv"
	"strings"
)

// CompileOptions change how script text is interpreted.
type CompileOptions struct {
	// ExtendedRegexp hands patterns to the regexp engine as written instead
	// of translating them from POSIX basic syntax.
	ExtendedRegexp bool
	// Sandbox rejects commands that touch files other than the inputs.
	Sandbox bool
}

// Compile compiles script text. The same source always compiles to the same
// command sequence, in source order.
func Compile(source string, opts CompileOptions) (*Script, error) {
	p := &parser{src: source, line: 1, opts: opts}
	if err := p.parse(); err != nil {
		return nil, err
	}

	if len(p.blocks) > 0 {
		open := p.cmds[p.blocks[len(p.blocks)-1]]
		return nil, syntaxErrorf(open.Line, "unmatched `{'")
	}

	labels, err := buildLabelTable(p.cmds)
	if err != nil {
		return nil, err
	}

	return &Script{Commands: p.cmds, labels: labels}, nil
}

// MustCompile is like Compile but panics if the script can't be compiled.
func MustCompile(source string, opts CompileOptions) *Script {
	script, err := Compile(source, opts)
	if err != nil {
		panic(err)
	}
	return script
}

// buildLabelTable maps every declared label to its command index and checks
// that every branch target exists.
func buildLabelTable(cmds []Command) (map[string]int, error) {
	labels := make(map[string]int)
	for i, cmd := range cmds {
		if cmd.Kind != KindLabel {
			continue
		}
		if _, ok := labels[cmd.Label]; ok {
			return nil, syntaxErrorf(cmd.Line, "duplicate label `%s'", cmd.Label)
		}
		labels[cmd.Label] = i
	}

	for _, cmd := range cmds {
		if !cmd.Kind.isBranch() || cmd.Label == "" {
			continue
		}
		if _, ok := labels[cmd.Label]; !ok {
			return nil, &UndefinedLabelError{Label: cmd.Label, Line: cmd.Line}
		}
	}

	return labels, nil
}

type parser struct {
	src  string
	pos  int
	line int
	opts CompileOptions

	cmds []Command
	// blocks holds the indexes of { commands that haven't been closed.
	blocks []int
	// lineHasCmd is set once anything was compiled from the current line.
	lineHasCmd bool
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (p *parser) readInt() int {
	start := p.pos
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		// Only reachable on overflow.
		return -1
	}
	return n
}

func (p *parser) parse() error {
	for {
		p.skipSpace()
		if p.eof() {
			return nil
		}

		switch p.peek() {
		case '\n':
			p.pos++
			if !p.lineHasCmd {
				p.cmds = append(p.cmds, Command{Kind: KindComment, Line: p.line})
			}
			p.line++
			p.lineHasCmd = false
			continue
		case ';':
			p.pos++
			continue
		case '#':
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
			p.cmds = append(p.cmds, Command{Kind: KindComment, Line: p.line})
			p.lineHasCmd = true
			continue
		}

		if err := p.parseCommand(); err != nil {
			return err
		}
		p.lineHasCmd = true
	}
}

func (p *parser) parseCommand() error {
	cmd := Command{Line: p.line}

	addr1, err := p.parseAddress()
	if err != nil {
		return err
	}
	if addr1 != nil {
		cmd.Addr1 = addr1
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
			addr2, err := p.parseRangeEnd()
			if err != nil {
				return err
			}
			if addr2 == nil {
				return syntaxErrorf(p.line, "unexpected `,'")
			}
			cmd.Addr2 = addr2
		}
	}

	// Line 0 only makes sense as the start of a range closed by a regex,
	// which can then close on the first line.
	for _, a := range []*Address{cmd.Addr1, cmd.Addr2} {
		if a == nil || a.Kind != AddrLine || a.Line != 0 {
			continue
		}
		if a == cmd.Addr1 && cmd.Addr2 != nil && cmd.Addr2.Kind == AddrRegexp {
			continue
		}
		return syntaxErrorf(p.line, "invalid usage of line address 0")
	}

	p.skipSpace()
	for p.peek() == '!' {
		if cmd.Negate {
			return syntaxErrorf(p.line, "multiple `!'s")
		}
		cmd.Negate = true
		p.pos++
		p.skipSpace()
	}

	if p.eof() || p.peek() == '\n' || p.peek() == ';' {
		return syntaxErrorf(p.line, "missing command")
	}

	letter := p.src[p.pos]
	p.pos++
	kind, ok := letterKinds[letter]
	if !ok || kind == KindComment {
		return syntaxErrorf(p.line, "unknown command: `%c'", letter)
	}
	cmd.Kind = kind

	switch kind {
	case KindLabel, KindBlockEnd:
		if cmd.Addr1 != nil || cmd.Negate {
			return syntaxErrorf(p.line, "%c doesn't want any addresses", letter)
		}
	case KindQuit, KindQuitSilent:
		if cmd.Addr2 != nil {
			return syntaxErrorf(p.line, "command only uses one address")
		}
	}

	switch kind {
	case KindLabel:
		cmd.Label = p.readLabel("\n;")
		if cmd.Label == "" {
			return syntaxErrorf(p.line, "\":\" lacks a label")
		}

	case KindBranch, KindTest, KindTestNot:
		// A branch may close a one-line block: /x/{s/a/b/;b}
		cmd.Label = p.readLabel("\n;}")

	case KindBlockStart:
		p.blocks = append(p.blocks, len(p.cmds))
		p.cmds = append(p.cmds, cmd)
		return nil

	case KindBlockEnd:
		if len(p.blocks) == 0 {
			return syntaxErrorf(p.line, "unexpected `}'")
		}
		open := p.blocks[len(p.blocks)-1]
		p.blocks = p.blocks[:len(p.blocks)-1]
		p.cmds[open].BlockEnd = len(p.cmds)

	case KindInsert, KindAppend, KindChange:
		text, err := p.readText()
		if err != nil {
			return err
		}
		cmd.Text = text

	case KindReadFile, KindReadLine, KindWriteFile, KindWriteFirstLine:
		if p.opts.Sandbox {
			return syntaxErrorf(p.line, "e/r/w commands disabled in sandbox mode")
		}
		cmd.Filename = p.readFilename()
		if cmd.Filename == "" {
			return syntaxErrorf(p.line, "missing filename in r/R/w/W commands")
		}

	case KindSubstitute:
		subst, err := p.parseSubstitute()
		if err != nil {
			return err
		}
		cmd.Subst = subst

	case KindTransliterate:
		translit, err := p.parseTransliterate()
		if err != nil {
			return err
		}
		cmd.Translit = translit

	case KindQuit, KindQuitSilent, KindList:
		p.skipSpace()
		if isDigit(p.peek()) {
			cmd.Int = p.readInt()
			cmd.HasInt = true
		}
	}

	p.cmds = append(p.cmds, cmd)
	return p.endCommand()
}

// endCommand checks that nothing but a separator follows a command.
func (p *parser) endCommand() error {
	p.skipSpace()
	if p.eof() {
		return nil
	}
	switch p.peek() {
	case '\n', '#', '}':
		return nil
	case ';':
		p.pos++
		return nil
	}
	return syntaxErrorf(p.line, "extra characters after command")
}

func (p *parser) parseAddress() (*Address, error) {
	c := p.peek()
	switch {
	case isDigit(c):
		n := p.readInt()
		if p.peek() == '~' {
			p.pos++
			if !isDigit(p.peek()) {
				return nil, syntaxErrorf(p.line, "expected step after `~'")
			}
			step := p.readInt()
			return &Address{Kind: AddrStep, Line: n, Step: step}, nil
		}
		return &Address{Kind: AddrLine, Line: n}, nil

	case c == '$':
		p.pos++
		return &Address{Kind: AddrLast}, nil

	case c == '/' || c == '\\':
		p.pos++
		delim := byte('/')
		if c == '\\' {
			if p.eof() || p.peek() == '\n' {
				return nil, syntaxErrorf(p.line, "unexpected end of address")
			}
			delim = p.src[p.pos]
			p.pos++
		}
		source, ok := p.readDelimited(delim)
		if !ok {
			return nil, syntaxErrorf(p.line, "unterminated address regex")
		}
		var flags string
		for p.peek() == 'I' || p.peek() == 'M' {
			flags += string(p.src[p.pos])
			p.pos++
		}
		re, err := compileRegexp(p.line, source, flags, p.opts.ExtendedRegexp)
		if err != nil {
			return nil, err
		}
		return &Address{Kind: AddrRegexp, Regexp: re, Source: source, Flags: flags}, nil
	}

	return nil, nil
}

// parseRangeEnd parses the second address of a range, which may also be
// +N or ~N.
func (p *parser) parseRangeEnd() (*Address, error) {
	kind := AddrRelative
	switch p.peek() {
	case '+':
	case '~':
		kind = AddrMultiple
	default:
		return p.parseAddress()
	}

	op := p.src[p.pos]
	p.pos++
	if !isDigit(p.peek()) {
		return nil, syntaxErrorf(p.line, "expected number after `%c'", op)
	}
	return &Address{Kind: kind, Step: p.readInt()}, nil
}

// readDelimited reads up to the next unescaped delim and consumes it. An
// escaped delimiter becomes the bare delimiter, an escaped newline becomes a
// newline, and every other escape is kept as written.
func (p *parser) readDelimited(delim byte) (string, bool) {
	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++

		switch {
		case c == delim:
			return sb.String(), true
		case c == '\n':
			return "", false
		case c == '\\':
			if p.eof() {
				return "", false
			}
			next := p.src[p.pos]
			p.pos++
			switch next {
			case delim:
				sb.WriteByte(delim)
			case '\n':
				p.line++
				sb.WriteByte('\n')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", false
}

// readLabel reads a label name up to any of the terminators.
func (p *parser) readLabel(terminators string) string {
	p.skipSpace()
	start := p.pos
	for !p.eof() && strings.IndexByte(terminators, p.peek()) < 0 {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

func (p *parser) readFilename() string {
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
	return p.src[start:p.pos]
}

// readText reads the argument of a, i and c in either the one-line form
// (a text) or the classic form (a\ followed by text on the next line). A
// trailing backslash continues the text on the next line.
func (p *parser) readText() (string, error) {
	p.skipSpace()
	if p.eof() || p.peek() == '\n' {
		return "", syntaxErrorf(p.line, "expected \\ after `a', `c' or `i'")
	}
	if p.peek() == '\\' {
		p.pos++
		p.skipSpace()
		if p.peek() == '\n' {
			p.pos++
			p.line++
		}
	}

	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\n' {
			break
		}
		p.pos++
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if p.eof() {
			break
		}
		next := p.src[p.pos]
		p.pos++
		if next == '\n' {
			p.line++
		}
		sb.WriteByte(next)
	}

	return sb.String(), nil
}

func (p *parser) parseSubstitute() (*Substitution, error) {
	if p.eof() || p.peek() == '\n' || p.peek() == '\\' {
		return nil, syntaxErrorf(p.line, "unterminated `s' command")
	}
	delim := p.src[p.pos]
	p.pos++

	pattern, ok := p.readDelimited(delim)
	if !ok {
		return nil, syntaxErrorf(p.line, "unterminated `s' command")
	}
	replacement, ok := p.readDelimited(delim)
	if !ok {
		return nil, syntaxErrorf(p.line, "unterminated `s' command")
	}

	s := &Substitution{
		Pattern:     pattern,
		Replacement: replacement,
		template:    expandTemplate(replacement),
	}

flags:
	for !p.eof() {
		c := p.peek()
		switch {
		case c == 'g':
			if s.Global {
				return nil, syntaxErrorf(p.line, "multiple `g' options to `s' command")
			}
			s.Global = true
		case c == 'p':
			if s.Print {
				return nil, syntaxErrorf(p.line, "multiple `p' options to `s' command")
			}
			s.Print = true
		case isDigit(c):
			if s.Count != 0 {
				return nil, syntaxErrorf(p.line, "multiple number options to `s' command")
			}
			s.Count = p.readInt()
			if s.Count == 0 {
				return nil, syntaxErrorf(p.line, "number option to `s' command may not be zero")
			}
			continue
		case c == 'i' || c == 'I' || c == 'm' || c == 'M':
			s.Flags += string(c)
		case c == 'w':
			p.pos++
			if p.opts.Sandbox {
				return nil, syntaxErrorf(p.line, "e/r/w commands disabled in sandbox mode")
			}
			s.WriteFile = p.readFilename()
			if s.WriteFile == "" {
				return nil, syntaxErrorf(p.line, "missing filename in r/R/w/W commands")
			}
			break flags
		case c == ' ' || c == '\t' || c == ';' || c == '\n' || c == '}' || c == '#':
			break flags
		default:
			return nil, syntaxErrorf(p.line, "unknown option to `s'")
		}
		p.pos++
	}

	re, err := compileRegexp(p.line, pattern, s.Flags, p.opts.ExtendedRegexp)
	if err != nil {
		return nil, err
	}
	s.Regexp = re

	return s, nil
}

// expandTemplate converts a sed replacement into regexp.Expand syntax. The
// engine's own $n and ${name} references pass through untouched; & and \1
// through \9 become ${0} through ${9}.
func expandTemplate(replacement string) string {
	var sb strings.Builder
	for i := 0; i < len(replacement); i++ {
		c := replacement[i]
		switch {
		case c == '&':
			sb.WriteString("${0}")
		case c == '\\' && i+1 < len(replacement):
			i++
			next := replacement[i]
			switch {
			case isDigit(next):
				sb.WriteString("${" + string(next) + "}")
			case next == 'n':
				sb.WriteByte('\n')
			case next == 't':
				sb.WriteByte('\t')
			case next == '$':
				sb.WriteString("$$")
			default:
				sb.WriteByte(next)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func (p *parser) parseTransliterate() (*Transliteration, error) {
	if p.eof() || p.peek() == '\n' || p.peek() == '\\' {
		return nil, syntaxErrorf(p.line, "unterminated `y' command")
	}
	delim := p.src[p.pos]
	p.pos++

	from, ok := p.readDelimited(delim)
	if !ok {
		return nil, syntaxErrorf(p.line, "unterminated `y' command")
	}
	to, ok := p.readDelimited(delim)
	if !ok {
		return nil, syntaxErrorf(p.line, "unterminated `y' command")
	}

	t := &Transliteration{
		From: []rune(unescapeTranslit(from)),
		To:   []rune(unescapeTranslit(to)),
	}
	if len(t.From) != len(t.To) {
		return nil, syntaxErrorf(p.line, "strings for `y' command are different lengths")
	}
	return t, nil
}

func unescapeTranslit(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
