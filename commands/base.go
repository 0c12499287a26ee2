package commands

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/josephlewis42/gosed/core/vos"
	getopt "github.com/pborman/getopt/v2"
)

// AllCommands holds a list of all registered commands
var AllCommands = make(map[string]vos.ProcessFunc)

var builtins []BuiltinCommand

// BuiltinCommand is a command and the paths it's installed under.
type BuiltinCommand struct {
	Names []string
	Proc  vos.ProcessFunc
}

// addBinCmd adds a command under /bin and /usr/bin.
func addBinCmd(name string, cmd vos.ProcessFunc) {
	names := []string{path.Join("/bin", name), path.Join("/usr/bin", name)}
	for _, n := range names {
		AllCommands[n] = cmd
	}
	builtins = append(builtins, BuiltinCommand{Names: names, Proc: cmd})
}

// ListBuiltinCommands returns every registered command sorted by its first
// name.
func ListBuiltinCommands() []BuiltinCommand {
	out := append([]BuiltinCommand(nil), builtins...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Names[0] < out[j].Names[0]
	})
	return out
}

// BuiltinProcessResolver finds a command by path, or by name in /bin and
// /usr/bin. It returns nil if no command matches.
func BuiltinProcessResolver(name string) vos.ProcessFunc {
	if strings.Contains(name, "/") {
		return AllCommands[path.Clean(name)]
	}

	for _, dir := range []string{"/bin", "/usr/bin"} {
		if proc, ok := AllCommands[path.Join(dir, name)]; ok {
			return proc
		}
	}
	return nil
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a sone line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(virtOS vos.VOS, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(virtOS.Args(), nil)
	if err != nil {
		virtOS.LogInvalidInvocation(err)
	}

	if err != nil && !s.NeverBail {
		fmt.Fprintf(virtOS.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(virtOS.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(virtOS.Stdout())
		return 0
	}

	return callback()
}

// RunE is like Run but the callback returns an error rather than an exit
// status. A non-nil error is written to stderr and the command exits 1.
func (s *SimpleCommand) RunE(virtOS vos.VOS, callback func() error) int {
	return s.Run(virtOS, func() int {
		if err := callback(); err != nil {
			s.LogProgramError(virtOS, err)
			return 1
		}
		return 0
	})
}

// LogProgramError writes err to stderr prefixed by the program name.
func (s *SimpleCommand) LogProgramError(virtOS vos.VOS, err error) {
	fmt.Fprintf(virtOS.Stderr(), "%s: %v\n", programName(virtOS), err)
}

// RunEachFileOrStdin calls callback for each file in turn, or once with
// stdin if there are no files. The name "-" also means stdin. Files that
// can't be opened and callback errors are logged and processing continues
// with the next file; the returned status is 1 if any file failed.
func (s *SimpleCommand) RunEachFileOrStdin(virtOS vos.VOS, files []string, callback func(name string, fd io.Reader) error) int {
	if len(files) == 0 {
		files = []string{"-"}
	}

	status := 0
	for _, name := range files {
		if err := s.runFileOrStdin(virtOS, name, callback); err != nil {
			s.LogProgramError(virtOS, err)
			status = 1
		}
	}
	return status
}

func (s *SimpleCommand) runFileOrStdin(virtOS vos.VOS, name string, callback func(name string, fd io.Reader) error) error {
	if name == "-" {
		return callback(name, virtOS.Stdin())
	}

	fd, err := virtOS.Open(name)
	if err != nil {
		return err
	}
	defer fd.Close()

	return callback(name, fd)
}

func programName(virtOS vos.VOS) string {
	args := virtOS.Args()
	if len(args) == 0 {
		return ""
	}
	return path.Base(args[0])
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldCyan  = color.New(color.FgCyan, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

type ColorPrinter struct {
	value  *string
	virtOS vos.VOS
}

// Init sets up the flag and virtual OS to determine the color output.
func (c *ColorPrinter) Init(flags *getopt.Set, virtOS vos.VOS) {
	c.virtOS = virtOS
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		return c.virtOS.GetPTY().IsPTY
	}
}

// Sprintf formats with the given color if the output should be colored.
// Color is forced on when requested even if the host isn't a terminal.
func (c *ColorPrinter) Sprintf(clr *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		forced := *clr
		forced.EnableColor()
		return forced.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
