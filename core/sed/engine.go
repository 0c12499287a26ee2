package sed

import (
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultLineWrap is the l command's wrap width when none is configured.
const DefaultLineWrap = 70

// Options is the finished options record the engine runs with.
type Options struct {
	// Quiet suppresses the automatic print at the end of each cycle.
	Quiet bool
	// ExtendedRegexp selects extended regular expression syntax.
	ExtendedRegexp bool
	// InPlace rewrites the input files instead of producing output.
	InPlace bool
	// BackupSuffix names the backup copy made before an in-place edit. A *
	// is replaced by the file's base name. Empty means no backup.
	BackupSuffix string
	// NullData separates lines by NUL instead of newline.
	NullData bool
	// Unbuffered asks the caller to flush after every output line.
	Unbuffered bool
	// Separate treats every input as its own stream.
	Separate bool
	// FollowSymlinks makes in-place edits operate on link targets.
	FollowSymlinks bool
	// Sandbox rejects commands that read or write side files.
	Sandbox bool
	// LineWrap is the default wrap width of the l command.
	LineWrap int
	// Debug asks the caller to print the compiled program before running.
	Debug bool

	// FS resolves the side files of r, R, w and W and the targets of
	// in-place edits. Defaults to the host filesystem.
	FS afero.Fs
	// Stdout receives writes to /dev/stdout during in-place edits, which
	// would otherwise land in the edited file. Defaults to discarding them.
	// Outside in-place mode those writes are part of the output.
	Stdout io.Writer
	// Stderr receives writes to /dev/stderr. Defaults to discarding them.
	Stderr io.Writer
	// Getwd resolves relative paths when following symlinks.
	Getwd func() (string, error)
}

// CompileOptions returns the compile time subset of the options.
func (o Options) CompileOptions() CompileOptions {
	return CompileOptions{ExtendedRegexp: o.ExtendedRegexp, Sandbox: o.Sandbox}
}

func (o Options) delimiter() byte {
	if o.NullData {
		return 0
	}
	return '\n'
}

func (o Options) lineWrap() int {
	if o.LineWrap == 0 {
		return DefaultLineWrap
	}
	return o.LineWrap
}

// stdout is where /dev/stdout writes go, nil meaning the run's output.
func (o Options) stdout() io.Writer {
	switch {
	case !o.InPlace:
		return nil
	case o.Stdout == nil:
		return ioutil.Discard
	default:
		return o.Stdout
	}
}

func (o Options) fs() afero.Fs {
	if o.FS == nil {
		return afero.NewOsFs()
	}
	return o.FS
}

// Engine executes a compiled script. It owns the state that outlives a
// single run: the hold space, write-file handles and whether a quit command
// has ended processing.
type Engine struct {
	script *Script
	opts   Options
	labels map[string]int
	files  *fileTable

	hold     string
	quit     bool
	exitCode int
}

// New prepares an engine. Every label a branch references must exist, and
// every write-file target is opened before any input is read.
func New(script *Script, opts Options) (*Engine, error) {
	labels := script.labels
	if labels == nil {
		// Built by hand, so the compiler never checked the branches.
		var err error
		if labels, err = buildLabelTable(script.Commands); err != nil {
			return nil, err
		}
	}

	files := newFileTable(opts.fs(), opts.delimiter(), opts.stdout(), opts.Stderr)
	if err := files.openWriters(script.Commands); err != nil {
		files.Close()
		return nil, err
	}

	return &Engine{
		script: script,
		opts:   opts,
		labels: labels,
		files:  files,
	}, nil
}

// Run returns the lazily produced output of the script over inputs. Unless
// Separate is set the inputs form one logical stream.
func (e *Engine) Run(inputs ...Input) *Output {
	return &Output{eng: e, inputs: inputs, delim: e.opts.delimiter()}
}

// Quit reports whether a q or Q command ended processing.
func (e *Engine) Quit() bool {
	return e.quit
}

// ExitCode is the exit code given to q or Q, or zero.
func (e *Engine) ExitCode() int {
	return e.exitCode
}

// Close releases the write-file handles. It's safe to call more than once.
func (e *Engine) Close() error {
	return e.files.Close()
}

// Output is the lazily computed output of one run. Every element is one
// whole line including its terminator.
type Output struct {
	eng    *Engine
	inputs []Input
	delim  byte

	// next is the index of the next input to start reading.
	next int
	run  *runState

	pending []string
	text    string
	err     error
	done    bool

	// missingTerminator is set when the last element omitted its terminator
	// because the input did.
	missingTerminator bool
}

// Scan advances to the next output line, running as many cycles as needed.
// It returns false when the output is exhausted or an error occurred.
func (o *Output) Scan() bool {
	for len(o.pending) == 0 {
		if o.done {
			return false
		}
		o.step()
	}

	o.text = o.pending[0]
	o.pending[0] = ""
	o.pending = o.pending[1:]
	return true
}

// Text returns the line produced by the last call to Scan.
func (o *Output) Text() string {
	return o.text
}

// Err returns the error that ended the run, if any.
func (o *Output) Err() error {
	return o.err
}

func (o *Output) step() {
	if o.eng.quit {
		o.done = true
		return
	}

	if o.run == nil {
		if o.next >= len(o.inputs) {
			o.done = true
			return
		}
		group := o.inputs[o.next:]
		if o.eng.opts.Separate {
			group = group[:1]
		}
		o.next += len(group)
		o.run = newRunState(o, group)
	}

	more, err := o.run.cycle()
	if err != nil {
		o.err = err
		o.done = true
		return
	}
	if !more {
		o.run = nil
	}
}

func (o *Output) emit(text string, terminated bool) {
	var sb strings.Builder
	if o.missingTerminator {
		sb.WriteByte(o.delim)
	}
	sb.WriteString(text)
	if terminated {
		sb.WriteByte(o.delim)
	}
	o.pending = append(o.pending, sb.String())
	o.missingTerminator = !terminated
}

type appendItem struct {
	text string
	// file is read when the queue is flushed if set.
	file string
}

// runState is the mutable state of one pass over a stream.
type runState struct {
	eng   *Engine
	out   *Output
	in    *lineReader
	cmds  []Command
	delim string

	patternSpace string
	cur          line
	lineNumber   int
	substituted  bool

	// rangeActive and rangeStart track the open ranges by command index.
	rangeActive []bool
	rangeStart  []int

	appends []appendItem
}

func newRunState(out *Output, inputs []Input) *runState {
	cmds := out.eng.script.Commands
	rs := &runState{
		eng:         out.eng,
		out:         out,
		in:          newLineReader(out.delim, inputs),
		cmds:        cmds,
		delim:       string(out.delim),
		rangeActive: make([]bool, len(cmds)),
		rangeStart:  make([]int, len(cmds)),
	}

	// 0,/re/ is open before the first line is read.
	for i, cmd := range cmds {
		if cmd.Addr2 != nil && cmd.Addr1.Kind == AddrLine && cmd.Addr1.Line == 0 {
			rs.rangeActive[i] = true
		}
	}
	return rs
}

// cycle reads one line and runs the script over it. It returns false once
// the stream is exhausted.
func (rs *runState) cycle() (bool, error) {
	l, ok, err := rs.in.read()
	if err != nil || !ok {
		return false, err
	}

	rs.load(l)
	rs.substituted = false
	return true, rs.execute()
}

func (rs *runState) load(l line) {
	rs.patternSpace = l.text
	rs.cur = l
	rs.lineNumber++
}

func (rs *runState) execute() error {
	autoprint := !rs.eng.opts.Quiet

	pc := 0
	for pc < len(rs.cmds) {
		cmd := &rs.cmds[pc]
		if !rs.selected(pc) {
			if cmd.Kind == KindBlockStart {
				pc = cmd.BlockEnd + 1
			} else {
				pc++
			}
			continue
		}

		next := pc + 1
		switch cmd.Kind {
		case KindComment, KindLabel, KindBlockStart, KindBlockEnd:
			// Nothing to do.

		case KindPrint:
			rs.emitPattern(rs.patternSpace)

		case KindPrintFirstLine:
			rs.emitPattern(rs.firstLine())

		case KindLineNumber:
			rs.out.emit(strconv.Itoa(rs.lineNumber), true)

		case KindDelete:
			return rs.endCycle(false)

		case KindDeleteFirstLine:
			i := strings.Index(rs.patternSpace, rs.delim)
			if i < 0 {
				return rs.endCycle(false)
			}
			rs.patternSpace = rs.patternSpace[i+1:]
			if err := rs.flushAppends(); err != nil {
				return err
			}
			next = 0

		case KindNext:
			// With no next line the stream ends here. Later streams of a
			// separate or in-place run still go through the script.
			if rs.in.atEOF() {
				return rs.endCycle(autoprint)
			}
			if autoprint {
				rs.emitPattern(rs.patternSpace)
			}
			if err := rs.flushAppends(); err != nil {
				return err
			}
			l, _, err := rs.in.read()
			if err != nil {
				return err
			}
			rs.load(l)

		case KindNextAppend:
			if rs.in.atEOF() {
				return rs.endCycle(autoprint)
			}
			if err := rs.flushAppends(); err != nil {
				return err
			}
			l, _, err := rs.in.read()
			if err != nil {
				return err
			}
			ps := rs.patternSpace + rs.delim
			rs.load(l)
			rs.patternSpace = ps + l.text

		case KindHold:
			rs.eng.hold = rs.patternSpace

		case KindHoldAppend:
			rs.eng.hold += rs.delim + rs.patternSpace

		case KindGet:
			rs.patternSpace = rs.eng.hold

		case KindGetAppend:
			rs.patternSpace += rs.delim + rs.eng.hold

		case KindExchange:
			rs.patternSpace, rs.eng.hold = rs.eng.hold, rs.patternSpace

		case KindSubstitute:
			if err := rs.substitute(cmd.Subst); err != nil {
				return err
			}

		case KindTest:
			if rs.substituted {
				rs.substituted = false
				next = rs.target(cmd)
			}

		case KindTestNot:
			if rs.substituted {
				rs.substituted = false
			} else {
				next = rs.target(cmd)
			}

		case KindBranch:
			next = rs.target(cmd)

		case KindInsert:
			rs.out.emit(cmd.Text, true)

		case KindAppend:
			rs.appends = append(rs.appends, appendItem{text: cmd.Text})

		case KindChange:
			// Ranges print the text once, when they close.
			if cmd.Addr2 == nil || cmd.Negate || !rs.rangeActive[pc] || rs.in.atEOF() {
				rs.out.emit(cmd.Text, true)
			}
			return rs.endCycle(false)

		case KindQuit:
			rs.eng.quit = true
			rs.eng.exitCode = cmd.Int
			return rs.endCycle(autoprint)

		case KindQuitSilent:
			rs.eng.quit = true
			rs.eng.exitCode = cmd.Int
			return rs.endCycle(false)

		case KindReadFile:
			rs.appends = append(rs.appends, appendItem{file: cmd.Filename})

		case KindReadLine:
			if text, ok := rs.eng.files.readLine(cmd.Filename); ok {
				rs.appends = append(rs.appends, appendItem{text: text})
			}

		case KindWriteFile:
			if err := rs.write(cmd.Filename, rs.patternSpace); err != nil {
				return err
			}

		case KindWriteFirstLine:
			if err := rs.write(cmd.Filename, rs.firstLine()); err != nil {
				return err
			}

		case KindTransliterate:
			rs.patternSpace = strings.Map(cmd.Translit.Map, rs.patternSpace)

		case KindList:
			width := rs.eng.opts.lineWrap()
			if cmd.HasInt {
				width = cmd.Int
			}
			for _, l := range listLines(rs.patternSpace, width) {
				rs.out.emit(l, true)
			}

		case KindZap:
			rs.patternSpace = ""

		case KindFilename:
			name := rs.cur.name
			if name == "" {
				name = "-"
			}
			rs.out.emit(name, true)

		default:
			panic(fmt.Sprintf("sed: unhandled command kind %v", cmd.Kind))
		}
		pc = next
	}

	return rs.endCycle(autoprint)
}

func (rs *runState) endCycle(print bool) error {
	if print {
		rs.emitPattern(rs.patternSpace)
	}
	return rs.flushAppends()
}

// emitPattern outputs pattern space text, omitting the terminator if the
// current input line had none.
func (rs *runState) emitPattern(text string) {
	rs.out.emit(text, rs.cur.terminated)
}

func (rs *runState) firstLine() string {
	if i := strings.Index(rs.patternSpace, rs.delim); i >= 0 {
		return rs.patternSpace[:i]
	}
	return rs.patternSpace
}

func (rs *runState) flushAppends() error {
	for _, a := range rs.appends {
		if a.file == "" {
			rs.out.emit(a.text, true)
			continue
		}
		content, ok := rs.eng.files.readFile(a.file)
		if !ok {
			continue
		}
		for _, l := range strings.Split(content, rs.delim) {
			rs.out.emit(l, true)
		}
	}
	rs.appends = rs.appends[:0]
	return nil
}

func (rs *runState) write(name, text string) error {
	if name == devStdout && rs.eng.files.stdout == nil {
		rs.out.emit(text, true)
		return nil
	}
	return rs.eng.files.write(name, text)
}

// target resolves a branch: an empty label jumps past the last command.
func (rs *runState) target(cmd *Command) int {
	if cmd.Label == "" {
		return len(rs.cmds)
	}
	return rs.eng.labels[cmd.Label]
}

// selected evaluates the addresses of the command at pc, updating its range
// state.
func (rs *runState) selected(pc int) bool {
	cmd := &rs.cmds[pc]

	var ok bool
	switch {
	case cmd.Addr1 == nil:
		ok = true
	case cmd.Addr2 == nil:
		ok = rs.match(cmd.Addr1)
	default:
		ok = rs.matchRange(pc, cmd)
	}

	if cmd.Negate {
		return !ok
	}
	return ok
}

// matchRange applies an inclusive addr1,addr2 range. A range opens on a line
// matching addr1 and stays open through the line matching addr2 or the end
// of input. addr2 is only tested on lines after the opening one, except for
// $, +N and ~N; a line number at or before the opening line never closes
// the range.
func (rs *runState) matchRange(pc int, cmd *Command) bool {
	end := cmd.Addr2
	if !rs.rangeActive[pc] {
		if !rs.match(cmd.Addr1) {
			return false
		}
		rs.rangeActive[pc] = true
		rs.rangeStart[pc] = rs.lineNumber
		switch end.Kind {
		case AddrLast:
			rs.rangeActive[pc] = !rs.in.atEOF()
		case AddrRelative, AddrMultiple:
			rs.rangeActive[pc] = rs.lineNumber < rs.rangeEnd(pc, end)
		}
		return true
	}

	switch end.Kind {
	case AddrLine:
		if end.Line <= rs.rangeStart[pc] {
			return true
		}
		return rs.closeAt(pc, end.Line)
	case AddrRelative, AddrMultiple:
		return rs.closeAt(pc, rs.rangeEnd(pc, end))
	}

	if rs.match(end) {
		rs.rangeActive[pc] = false
	}
	return true
}

// closeAt closes the range at pc once line last is reached.
func (rs *runState) closeAt(pc, last int) bool {
	if rs.lineNumber >= last {
		rs.rangeActive[pc] = false
	}
	// Lines consumed by n or N can carry the count past the end.
	return rs.lineNumber <= last
}

// rangeEnd is the last line of a +N or ~N range.
func (rs *runState) rangeEnd(pc int, end *Address) int {
	start := rs.rangeStart[pc]
	switch {
	case end.Kind == AddrRelative:
		return start + end.Step
	case end.Step <= 0 || start%end.Step == 0:
		return start
	default:
		return (start/end.Step + 1) * end.Step
	}
}

func (rs *runState) match(a *Address) bool {
	switch a.Kind {
	case AddrLine:
		return rs.lineNumber == a.Line
	case AddrLast:
		return rs.in.atEOF()
	case AddrStep:
		if a.Step <= 0 {
			return rs.lineNumber == a.Line
		}
		return rs.lineNumber >= a.Line && (rs.lineNumber-a.Line)%a.Step == 0
	case AddrRegexp:
		return a.Regexp.MatchString(rs.patternSpace)
	default:
		panic(fmt.Sprintf("sed: unhandled address kind %d", a.Kind))
	}
}

// substitute applies an s command. Only a change to the pattern space counts
// as a substitution.
func (rs *runState) substitute(s *Substitution) error {
	ps := rs.patternSpace
	matches := s.Regexp.FindAllStringSubmatchIndex(ps, -1)

	var dst []byte
	last := 0
	replaced := false
	for i, m := range matches {
		n := i + 1
		switch {
		case s.Count > 0 && n != s.Count:
			continue
		case s.Count == 0 && !s.Global && n != 1:
			continue
		}

		dst = append(dst, ps[last:m[0]]...)
		dst = s.Regexp.ExpandString(dst, s.template, ps, m)
		last = m[1]
		replaced = true

		if s.Count > 0 || !s.Global {
			break
		}
	}
	if !replaced {
		return nil
	}
	dst = append(dst, ps[last:]...)

	result := string(dst)
	if result == ps {
		return nil
	}
	rs.patternSpace = result
	rs.substituted = true

	if s.Print {
		rs.emitPattern(rs.patternSpace)
	}
	if s.WriteFile != "" {
		return rs.write(s.WriteFile, rs.patternSpace)
	}
	return nil
}

// Execute runs script over inputs and copies the output to w. It returns the
// script's exit code.
func Execute(w io.Writer, script *Script, opts Options, inputs ...Input) (int, error) {
	eng, err := New(script, opts)
	if err != nil {
		return 0, err
	}
	defer eng.Close()

	out := eng.Run(inputs...)
	for out.Scan() {
		if _, err := io.WriteString(w, out.Text()); err != nil {
			return 0, &IOError{Op: "couldn't write", Err: err}
		}
	}
	if err := out.Err(); err != nil {
		return 0, err
	}

	return eng.ExitCode(), eng.Close()
}
