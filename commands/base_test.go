package commands

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/gosed/core/vos"
	"github.com/josephlewis42/gosed/core/vos/vostest"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestAllCommands(t *testing.T) {
	for _, cmdEntry := range ListBuiltinCommands() {
		t.Run(strings.Join(cmdEntry.Names, ","), func(t *testing.T) {
			if cmdEntry.Proc == nil {
				t.Fatal("nil command", cmdEntry.Names)
			}
		})
	}
}

func TestBuiltinProcessResolver(t *testing.T) {
	cases := map[string]bool{
		"sed":             true,
		"cat":             true,
		"/bin/sed":        true,
		"/usr/bin/cat":    true,
		"/bin/../bin/sed": true,
		"awk":             false,
		"/sbin/sed":       false,
		"bin/sed":         false,
	}

	for name, found := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, found, BuiltinProcessResolver(name) != nil)
		})
	}
}

func TestSimpleCommand_RunE(t *testing.T) {
	proc := func(virtOS vos.VOS) int {
		cmd := &SimpleCommand{Use: "fail", Short: "Always fails."}
		return cmd.RunE(virtOS, func() error {
			return errors.New("it broke")
		})
	}

	cmd := vostest.Command(proc, "/bin/fail")
	out, err := cmd.CombinedOutput()
	assert.NoError(t, err)
	assert.Equal(t, 1, cmd.ExitStatus)
	assert.Equal(t, "fail: it broke\n", string(out))
}

func TestSimpleCommand_badFlag(t *testing.T) {
	proc := func(virtOS vos.VOS) int {
		cmd := &SimpleCommand{Use: "noop", Short: "Does nothing."}
		return cmd.Run(virtOS, func() int { return 0 })
	}

	cmd := vostest.Command(proc, "noop", "--bogus")
	out, err := cmd.CombinedOutput()
	assert.NoError(t, err)
	assert.Equal(t, 1, cmd.ExitStatus)
	assert.Contains(t, string(out), "usage: noop")
	assert.Equal(t, []string{"run_command", "invalid_invocation"}, cmd.EventNames())
}

func TestSimpleCommand_RunEachFileOrStdin(t *testing.T) {
	var names []string
	proc := func(virtOS vos.VOS) int {
		cmd := &SimpleCommand{Use: "names", Short: "Lists inputs."}
		return cmd.Run(virtOS, func() int {
			return cmd.RunEachFileOrStdin(virtOS, cmd.Flags().Args(), func(name string, fd io.Reader) error {
				names = append(names, name)
				_, err := io.Copy(virtOS.Stdout(), fd)
				return err
			})
		})
	}

	cmd := vostest.Command(proc, "names", "/a", "-", "/missing", "/b")
	cmd.Stdin = strings.NewReader("stdin\n")
	cmd.Setup = func(virtOS vos.VOS) error {
		afero.WriteFile(virtOS, "/a", []byte("a\n"), 0644)
		return afero.WriteFile(virtOS, "/b", []byte("b\n"), 0644)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	assert.NoError(t, cmd.Run())

	assert.Equal(t, 1, cmd.ExitStatus)
	assert.Equal(t, []string{"/a", "-", "/b"}, names)
	assert.Equal(t, "a\nstdin\nb\n", stdout.String())
	assert.Equal(t, "names: open /missing: file does not exist\n", stderr.String())
}

func TestColorPrinter(t *testing.T) {
	cases := map[string]struct {
		flag  string
		isPTY bool
		color bool
	}{
		"always":        {"always", false, true},
		"never on pty":  {"never", true, false},
		"auto on pty":   {"auto", true, true},
		"auto detached": {"auto", false, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var got string
			proc := func(virtOS vos.VOS) int {
				cmd := &SimpleCommand{Use: "color", Short: "Prints in color."}
				var colors ColorPrinter
				colors.Init(cmd.Flags(), virtOS)
				return cmd.Run(virtOS, func() int {
					got = colors.Sprintf(ColorBoldRed, "%s", "hi")
					return 0
				})
			}

			cmd := vostest.Command(proc, "color", "--color", tc.flag)
			cmd.PTY = vos.PTY{IsPTY: tc.isPTY}
			assert.NoError(t, cmd.Run())

			if tc.color {
				assert.NotEqual(t, "hi", got)
				assert.Contains(t, got, "hi")
			} else {
				assert.Equal(t, "hi", got)
			}
		})
	}
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Args  []string
	Stdin string
}

// goldenFiles are present in the filesystem of every golden test.
var goldenFiles = map[string]string{
	"/fruit.txt":  "apple\nbanana\ncherry\n",
	"/colors.txt": "red\ngreen\nblue\n",
}

func (gts goldenTestSuite) Run(t *testing.T, cmd vos.ProcessFunc) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(cmd, tc.Args[0], tc.Args[1:]...)
			cmd.Resolver = BuiltinProcessResolver
			cmd.Stdin = strings.NewReader(tc.Stdin)
			cmd.Setup = func(virtOS vos.VOS) error {
				for name, content := range goldenFiles {
					if err := afero.WriteFile(virtOS, name, []byte(content), 0644); err != nil {
						return err
					}
				}
				return nil
			}

			out, err := cmd.CombinedOutput()
			if err != nil {
				t.Fatal(err)
			}

			g.Assert(t, tn, out)
		})
	}
}
