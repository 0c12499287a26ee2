package commands

import (
	"testing"

	"github.com/josephlewis42/gosed/core/vos"
	"github.com/josephlewis42/gosed/core/vos/vostest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestLs(t *testing.T) {
	cases := goldenTestSuite{
		"root":    {Args: []string{"ls", "/"}},
		"file":    {Args: []string{"ls", "/fruit.txt"}},
		"missing": {Args: []string{"ls", "/nope"}},
	}

	cases.Run(t, Ls)
}

func TestLs_multiple(t *testing.T) {
	cmd := vostest.Command(Ls, "ls", "/b", "/a", "/top.txt")
	cmd.Setup = func(virtOS vos.VOS) error {
		for _, name := range []string{"/a/x.sed", "/a/.hidden", "/b/y", "/top.txt"} {
			if err := afero.WriteFile(virtOS, name, nil, 0644); err != nil {
				return err
			}
		}
		return nil
	}

	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus)
	assert.Equal(t, "/top.txt\n\n/a:\nx.sed\n\n/b:\ny\n", string(out))
}

func TestLs_pty(t *testing.T) {
	cmd := vostest.Command(Ls, "ls", "-a", "--color=never", "/")
	cmd.PTY = vos.PTY{IsPTY: true}
	cmd.Setup = func(virtOS vos.VOS) error {
		if err := afero.WriteFile(virtOS, "/.profile", nil, 0644); err != nil {
			return err
		}
		return afero.WriteFile(virtOS, "/notes", nil, 0644)
	}

	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, ".profile  notes\n", string(out))
}

func TestDircolor(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/dir", 0755)
	afero.WriteFile(fs, "/script.sed", nil, 0644)
	afero.WriteFile(fs, "/run", nil, 0755)
	afero.WriteFile(fs, "/plain", nil, 0644)

	cases := map[string]interface{}{
		"/dir":        ColorBoldBlue,
		"/script.sed": ColorBoldRed,
		"/run":        ColorBoldGreen,
	}
	for name, want := range cases {
		fi, err := fs.Stat(name)
		assert.NoError(t, err)
		assert.Same(t, want, Dircolor(fi), name)
	}

	fi, err := fs.Stat("/plain")
	assert.NoError(t, err)
	assert.NotSame(t, ColorBoldBlue, Dircolor(fi))
}
