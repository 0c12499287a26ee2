package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/josephlewis42/gosed/core/sed"
	"github.com/josephlewis42/gosed/core/vos"
	getopt "github.com/pborman/getopt/v2"
	"github.com/spf13/afero"
)

// Exit statuses of sed.
const (
	sedExitBadUsage   = 1
	sedExitBadInput   = 2
	sedExitPanicIOErr = 4
)

// SedDefaults are the option values sed uses when the invocation doesn't
// set them.
type SedDefaults struct {
	LineWrap       int
	Sandbox        bool
	FollowSymlinks bool
}

// Sed is the stream editor with no configured defaults.
var Sed = NewSed(SedDefaults{})

// NewSed creates the sed command with the given defaults.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/sed.html
func NewSed(defaults SedDefaults) vos.ProcessFunc {
	return func(virtOS vos.VOS) int {
		return runSed(virtOS, defaults)
	}
}

// ConfiguredResolver resolves builtin commands, giving sed the defaults.
func ConfiguredResolver(defaults SedDefaults) vos.ProcessResolver {
	configured := NewSed(defaults)
	return func(name string) vos.ProcessFunc {
		proc := BuiltinProcessResolver(name)
		if proc != nil && path.Base(name) == "sed" {
			return configured
		}
		return proc
	}
}

// scriptPiece is one -e or -f argument.
type scriptPiece struct {
	text string
	file bool
}

// scriptFlag collects -e and -f arguments in the order they're given.
// Commas aren't separators so getopt's list flags can't be used.
type scriptFlag struct {
	pieces *[]scriptPiece
	file   bool
}

var _ getopt.Value = (*scriptFlag)(nil)

func (s *scriptFlag) Set(value string, _ getopt.Option) error {
	*s.pieces = append(*s.pieces, scriptPiece{text: value, file: s.file})
	return nil
}

func (s *scriptFlag) String() string {
	return ""
}

func runSed(virtOS vos.VOS, defaults SedDefaults) int {
	cmd := &SimpleCommand{
		Use:   "sed [OPTION]... {script-only-if-no-other-script} [FILE]...",
		Short: "Stream editor for filtering and transforming text.",
	}

	var pieces []scriptPiece

	opts := cmd.Flags()
	quiet := opts.BoolLong("quiet", 'n', "suppress automatic printing of pattern space")
	silent := opts.BoolLong("silent", 0, "same as --quiet")
	opts.FlagLong(&scriptFlag{pieces: &pieces}, "expression", 'e', "add the script to the commands to be executed", "SCRIPT")
	opts.FlagLong(&scriptFlag{pieces: &pieces, file: true}, "file", 'f', "add the contents of FILE to the commands to be executed", "FILE")
	backupSuffix := opts.StringLong("in-place", 'i', "", "edit files in place, making a backup if SUFFIX is given", "SUFFIX")
	inPlace := opts.Lookup("in-place").SetOptional()
	extended := opts.BoolLong("regexp-extended", 'E', "use extended regular expressions in the script")
	extendedCompat := opts.Bool('r', "same as -E")
	separate := opts.BoolLong("separate", 's', "consider files as separate rather than as a single continuous long stream")
	nullData := opts.BoolLong("null-data", 'z', "separate lines by NUL characters")
	unbuffered := opts.BoolLong("unbuffered", 'u', "flush the output after every line")
	lineLength := opts.IntLong("line-length", 'l', 0, "specify the desired line-wrap length for the `l' command", "N")
	followSymlinks := opts.BoolLong("follow-symlinks", 0, "follow symlinks when processing in place")
	sandbox := opts.BoolLong("sandbox", 0, "reject the r, R, w and W commands")
	debug := opts.BoolLong("debug", 0, "print the program before running it")

	var colors ColorPrinter
	colors.Init(opts, virtOS)

	return cmd.Run(virtOS, func() int {
		files := opts.Args()
		if len(pieces) == 0 {
			if len(files) == 0 {
				err := errors.New("no script specified")
				virtOS.LogInvalidInvocation(err)
				cmd.LogProgramError(virtOS, err)
				fmt.Fprintln(virtOS.Stderr())
				cmd.PrintHelp(virtOS.Stderr())
				return sedExitBadUsage
			}
			pieces = append(pieces, scriptPiece{text: files[0]})
			files = files[1:]
		}

		lineWrap, err := sedLineWrap(virtOS, opts.Lookup("line-length").Seen(), *lineLength, defaults.LineWrap)
		if err != nil {
			virtOS.LogInvalidInvocation(err)
			cmd.LogProgramError(virtOS, err)
			return sedExitBadUsage
		}

		sedOpts := sed.Options{
			Quiet:          *quiet || *silent,
			ExtendedRegexp: *extended || *extendedCompat,
			InPlace:        inPlace.Seen(),
			BackupSuffix:   *backupSuffix,
			NullData:       *nullData,
			Unbuffered:     *unbuffered,
			Separate:       *separate,
			FollowSymlinks: *followSymlinks || defaults.FollowSymlinks,
			Sandbox:        *sandbox || defaults.Sandbox,
			LineWrap:       lineWrap,
			Debug:          *debug,
			FS:             virtOS,
			Stdout:         virtOS.Stdout(),
			Stderr:         virtOS.Stderr(),
			Getwd:          virtOS.Getwd,
		}

		source, err := readScript(virtOS, pieces)
		if err != nil {
			cmd.LogProgramError(virtOS, err)
			return sedExitBadUsage
		}

		script, err := sed.Compile(source, sedOpts.CompileOptions())
		if err != nil {
			virtOS.LogEvent("script_error", map[string]interface{}{
				"script": source,
				"error":  err.Error(),
			})
			cmd.LogProgramError(virtOS, err)
			return sedExitBadUsage
		}

		if sedOpts.Debug {
			printProgram(virtOS.Stdout(), &colors, script)
		}

		if sedOpts.InPlace {
			return sedInPlace(virtOS, cmd, script, sedOpts, files)
		}
		return sedStream(virtOS, cmd, script, sedOpts, files)
	})
}

// sedLineWrap picks the l command's wrap length: -l, then COLUMNS, then the
// configured default. A length of 0 disables wrapping.
func sedLineWrap(virtOS vos.VOS, lengthSet bool, length, configured int) (int, error) {
	wrap := configured

	if cols, err := strconv.Atoi(virtOS.Getenv("COLUMNS")); err == nil && cols > 1 {
		wrap = cols - 1
	}

	if lengthSet {
		switch {
		case length < 0:
			return 0, fmt.Errorf("invalid line length: %d", length)
		case length == 0:
			// The engine treats 1 as unlimited, 0 as unset.
			wrap = 1
		default:
			wrap = length
		}
	}

	return wrap, nil
}

// readScript joins -e and -f arguments into one program.
func readScript(virtOS vos.VOS, pieces []scriptPiece) (string, error) {
	var parts []string
	for _, piece := range pieces {
		if !piece.file {
			parts = append(parts, piece.text)
			continue
		}

		var data []byte
		var err error
		if piece.text == "-" {
			data, err = io.ReadAll(virtOS.Stdin())
		} else {
			data, err = afero.ReadFile(virtOS, piece.text)
		}
		if err != nil {
			return "", fmt.Errorf("couldn't open file %s: %s", piece.text, describeErr(err))
		}
		parts = append(parts, strings.TrimSuffix(string(data), "\n"))
	}

	return strings.Join(parts, "\n"), nil
}

func printProgram(w io.Writer, colors *ColorPrinter, script *sed.Script) {
	fmt.Fprintln(w, colors.Sprintf(ColorBoldCyan, "SED PROGRAM:"))
	program := strings.TrimSuffix(script.String(), "\n")
	if program == "" {
		return
	}
	for _, line := range strings.Split(program, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func sedStream(virtOS vos.VOS, cmd *SimpleCommand, script *sed.Script, opts sed.Options, files []string) int {
	if len(files) == 0 {
		files = []string{"-"}
	}

	status := 0
	var inputs []sed.Input
	for _, name := range files {
		if name == "-" {
			inputs = append(inputs, sed.Input{Name: name, Reader: virtOS.Stdin()})
			continue
		}

		fd, err := virtOS.Open(name)
		if err != nil {
			cmd.LogProgramError(virtOS, fmt.Errorf("can't read %s: %s", name, describeErr(err)))
			status = sedExitBadInput
			continue
		}
		defer fd.Close()

		if info, err := fd.Stat(); err == nil && info.IsDir() {
			cmd.LogProgramError(virtOS, fmt.Errorf("read error on %s: Is a directory", name))
			status = sedExitBadInput
			continue
		}

		inputs = append(inputs, sed.Input{Name: name, Reader: fd})
	}

	eng, err := sed.New(script, opts)
	if err != nil {
		cmd.LogProgramError(virtOS, err)
		return sedExitPanicIOErr
	}
	defer eng.Close()

	w := bufio.NewWriter(virtOS.Stdout())
	out := eng.Run(inputs...)
	for out.Scan() {
		if _, err := w.WriteString(out.Text()); err != nil {
			cmd.LogProgramError(virtOS, fmt.Errorf("couldn't write: %v", err))
			return sedExitPanicIOErr
		}
		if opts.Unbuffered {
			if err := w.Flush(); err != nil {
				cmd.LogProgramError(virtOS, fmt.Errorf("couldn't flush stdout: %v", err))
				return sedExitPanicIOErr
			}
		}
	}

	if err := w.Flush(); err != nil {
		cmd.LogProgramError(virtOS, fmt.Errorf("couldn't flush stdout: %v", err))
		return sedExitPanicIOErr
	}
	if err := out.Err(); err != nil {
		cmd.LogProgramError(virtOS, err)
		return sedExitPanicIOErr
	}
	if err := eng.Close(); err != nil {
		cmd.LogProgramError(virtOS, err)
		return sedExitPanicIOErr
	}

	if code := eng.ExitCode(); code != 0 {
		return code
	}
	return status
}

func sedInPlace(virtOS vos.VOS, cmd *SimpleCommand, script *sed.Script, opts sed.Options, files []string) int {
	if len(files) == 0 {
		err := errors.New("no input files")
		virtOS.LogInvalidInvocation(err)
		cmd.LogProgramError(virtOS, err)
		return sedExitBadUsage
	}

	result, err := sed.EditInPlace(script, opts, files...)
	status := 0
	if result != nil {
		for _, edit := range result.Edits {
			if edit.Err != nil {
				cmd.LogProgramError(virtOS, edit.Err)
				status = sedExitBadInput
				continue
			}

			virtOS.LogEvent("in_place_edit", map[string]interface{}{
				"path":   edit.Path,
				"target": edit.Target,
				"backup": edit.Backup,
			})
		}
	}

	if err != nil {
		cmd.LogProgramError(virtOS, err)
		return sedExitPanicIOErr
	}

	if result.ExitCode != 0 {
		return result.ExitCode
	}
	return status
}

// describeErr drops the operation and path from filesystem errors so
// messages name the path the way the user wrote it.
func describeErr(err error) string {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}

var _ vos.ProcessFunc = Sed

func init() {
	addBinCmd("sed", Sed)
}
