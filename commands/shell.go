package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/gosed/core/vos"
)

const (
	EnvHome            = "HOME"
	EnvPWD             = "PWD"
	EnvPrompt          = "PS1"
	EnvHostname        = "HOSTNAME"
	DefaultColorPrompt = `\033[01;32m\h\033[00m:\033[01;34m\w\033[00m\$ `
	DefaultPrompt      = `\h:\w\$ `
)

// Shell is a small command interpreter: commands are split into words like
// sh does, and may be joined with ;, && and | or redirected with > and >>.
// Variables and globs aren't expanded so sed scripts don't need quoting.
type Shell struct {
	VirtualOS vos.VOS
	Readline  *readline.Instance

	lastRet int
	history []string

	// Set to true to quit the shell
	Quit bool
}

// ShellBuiltin runs inside the shell process rather than as a child.
type ShellBuiltin func(s *Shell, ec execContext) int

// AllBuiltins holds a list of all shell builtins.
var AllBuiltins = map[string]ShellBuiltin{}

func init() {
	// Assigned here to avoid an initialization cycle through help.
	AllBuiltins = map[string]ShellBuiltin{
		"cd":      builtinCd,
		"exit":    builtinExit,
		"help":    builtinHelp,
		"history": builtinHistory,
	}
}

// RunShell implements sh.
func RunShell(virtualOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "sh [-c COMMAND]",
		Short: "Command interpreter for running sed and friends.",
	}
	commandFlag := cmd.Flags().String('c', "", "read commands from the COMMAND string", "COMMAND")

	return cmd.Run(virtualOS, func() int {
		s := &Shell{VirtualOS: virtualOS}
		s.Init()

		if cmd.Flags().Lookup('c').Seen() {
			s.runCommand(*commandFlag)
			return s.lastRet
		}

		if err := s.initReadline(); err != nil {
			cmd.LogProgramError(virtualOS, err)
			return 1
		}
		defer s.Readline.Close()

		return s.runInteractive()
	})
}

// Init sets up the environment similar to login + source ~/.bashrc.
func (s *Shell) Init() {
	s.VirtualOS.Setenv(EnvHostname, s.VirtualOS.Hostname())
	if _, ok := s.VirtualOS.LookupEnv(EnvPrompt); !ok {
		if s.VirtualOS.GetPTY().IsPTY {
			s.VirtualOS.Setenv(EnvPrompt, DefaultColorPrompt)
		} else {
			s.VirtualOS.Setenv(EnvPrompt, DefaultPrompt)
		}
	}
	s.updatePWD()
}

func (s *Shell) updatePWD() {
	if wd, err := s.VirtualOS.Getwd(); err == nil {
		s.VirtualOS.Setenv(EnvPWD, wd)
	}
}

func (s *Shell) initReadline() error {
	cfg := &readline.Config{
		Stdin:  readline.NewCancelableStdin(s.VirtualOS.Stdin()),
		Stdout: s.VirtualOS.Stdout(),
		Stderr: s.VirtualOS.Stderr(),
		FuncGetWidth: func() int {
			return s.VirtualOS.GetPTY().Width
		},
		FuncIsTerminal: func() bool {
			return s.VirtualOS.GetPTY().IsPTY
		},
	}

	if err := cfg.Init(); err != nil {
		return err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return err
	}
	s.Readline = rl
	return nil
}

func (s *Shell) prompt() string {
	prompt := s.VirtualOS.Getenv(EnvPrompt)
	prompt = strings.ReplaceAll(prompt, `\h`, s.VirtualOS.Getenv(EnvHostname))

	pwd, _ := s.VirtualOS.Getwd()
	home := s.VirtualOS.Getenv(EnvHome)
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)
	prompt = strings.ReplaceAll(prompt, `\$`, "$")

	prompt, _ = expandEscapes(prompt)
	return prompt
}

func (s *Shell) runInteractive() int {
	for !s.Quit {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return s.lastRet // Input closed, quit.

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue

		case err != nil:
			log.Printf("Error readline: %v", err)
			continue

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.history = append(s.history, line)
			s.runCommand(line)
		}
	}
	return s.lastRet
}

// runCommand runs one line of input.
func (s *Shell) runCommand(line string) {
	words, err := shlex.Split(line, true)
	if err != nil {
		s.syntaxError(err)
		return
	}

	list, err := parseList(words)
	if err != nil {
		s.syntaxError(err)
		return
	}

	for _, item := range list {
		if item.andIf && s.lastRet != 0 {
			continue
		}
		if err := s.executePipeline(item.pipeline); err != nil {
			fmt.Fprintf(s.VirtualOS.Stderr(), "sh: %v\n", err)
			s.lastRet = 1
		}
		if s.Quit {
			return
		}
	}
}

func (s *Shell) syntaxError(err error) {
	s.VirtualOS.LogInvalidInvocation(fmt.Errorf("sh syntax error: %v", err))
	fmt.Fprintf(s.VirtualOS.Stderr(), "sh: syntax error: %v\n", err)
	s.lastRet = 2
}

// listItem is one pipeline in a command list.
type listItem struct {
	// andIf is set if the pipeline only runs when the previous one succeeded.
	andIf    bool
	pipeline []simpleCommand
}

type redirect struct {
	path   string
	append bool
}

type simpleCommand struct {
	args   []string
	stdout *redirect
}

// parseList splits words into pipelines on the ;, &&, | and redirection
// operators. Operators must be separate words.
func parseList(words []string) ([]listItem, error) {
	var out []listItem
	cur := listItem{}
	cmd := simpleCommand{}

	endCommand := func(op string) error {
		if len(cmd.args) == 0 {
			return fmt.Errorf("unexpected token `%s'", op)
		}
		cur.pipeline = append(cur.pipeline, cmd)
		cmd = simpleCommand{}
		return nil
	}

	for i := 0; i < len(words); i++ {
		switch word := words[i]; word {
		case ";", "&&":
			if err := endCommand(word); err != nil {
				return nil, err
			}
			out = append(out, cur)
			cur = listItem{andIf: word == "&&"}
		case "|":
			if err := endCommand(word); err != nil {
				return nil, err
			}
		case ">", ">>":
			if i+1 >= len(words) {
				return nil, errors.New("unexpected end of file")
			}
			i++
			cmd.stdout = &redirect{path: words[i], append: word == ">>"}
		default:
			cmd.args = append(cmd.args, word)
		}
	}

	switch {
	case len(cmd.args) > 0:
		cur.pipeline = append(cur.pipeline, cmd)
		out = append(out, cur)
	case cmd.stdout != nil || len(cur.pipeline) > 0 || cur.andIf:
		return nil, errors.New("unexpected end of file")
	}
	return out, nil
}

type execContext struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// args contains the CLI arguments for the command
	args []string
}

// executePipeline runs each command in turn, buffering the output of one as
// the input of the next.
func (s *Shell) executePipeline(pipeline []simpleCommand) error {
	var stdin io.Reader = s.VirtualOS.Stdin()
	for i, cmd := range pipeline {
		ec := execContext{
			stdin:  stdin,
			stdout: s.VirtualOS.Stdout(),
			stderr: s.VirtualOS.Stderr(),
			args:   cmd.args,
		}

		var buf *bytes.Buffer
		if i < len(pipeline)-1 {
			buf = &bytes.Buffer{}
			ec.stdout = buf
		}

		if cmd.stdout != nil {
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if cmd.stdout.append {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			fd, err := s.VirtualOS.OpenFile(cmd.stdout.path, flags, 0644)
			if err != nil {
				return err
			}
			defer fd.Close()
			ec.stdout = fd
		}

		s.executeProgramOrBuiltin(ec)

		if buf != nil {
			stdin = buf
		} else {
			stdin = &bytes.Buffer{}
		}
	}
	return nil
}

func (s *Shell) executeProgramOrBuiltin(ec execContext) {
	// Execute builtins
	if builtin, ok := AllBuiltins[ec.args[0]]; ok {
		s.lastRet = builtin(s, ec)
		return
	}

	// Execute program
	proc, err := s.VirtualOS.StartProcess(ec.args[0], ec.args, &vos.ProcAttr{
		Env:   s.VirtualOS.Environ(),
		Files: vos.NewVIOAdapter(ec.stdin, ec.stdout, ec.stderr),
	})
	switch {
	case errors.Is(err, vos.ErrNotFound):
		fmt.Fprintf(ec.stderr, "sh: %s: command not found\n", ec.args[0])
		s.lastRet = 127
		return
	case err != nil:
		fmt.Fprintf(ec.stderr, "sh: %s\n", err)
		s.lastRet = 126
		return
	}

	s.lastRet = proc.Run()
}

func builtinCd(s *Shell, ec execContext) int {
	args := ec.args
	switch len(args) {
	case 1:
		args = append(args, s.VirtualOS.Getenv(EnvHome))
		fallthrough
	case 2:
		if err := s.VirtualOS.Chdir(args[1]); err != nil {
			fmt.Fprintf(ec.stderr, "%s: %v\n", args[0], err)
			return 1
		}
		s.updatePWD()
		return 0
	default:
		fmt.Fprintf(ec.stderr, "%s: too many arguments\n", args[0])
		return 1
	}
}

func builtinExit(s *Shell, ec execContext) int {
	s.Quit = true
	if len(ec.args) < 2 {
		return s.lastRet
	}

	code, err := strconv.Atoi(ec.args[1])
	if err != nil {
		fmt.Fprintf(ec.stderr, "exit: %s: numeric argument required\n", ec.args[1])
		return 2
	}
	return code
}

func builtinHelp(s *Shell, ec execContext) int {
	w := ec.stdout
	fmt.Fprintln(w, "These shell commands are defined internally:")
	fmt.Fprintln(w)

	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Programs:")
	fmt.Fprintln(w)
	for _, builtin := range ListBuiltinCommands() {
		fmt.Fprintf(w, "  %s\n", strings.Join(builtin.Names, ", "))
	}
	return 0
}

func builtinHistory(s *Shell, ec execContext) int {
	for i, line := range s.history {
		fmt.Fprintf(ec.stdout, "% 5d  %s\n", i+1, line)
	}
	return 0
}

var _ vos.ProcessFunc = RunShell

func init() {
	addBinCmd("sh", RunShell)
}
