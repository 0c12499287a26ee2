package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/tabwriter"

	fcolor "github.com/fatih/color"
	"github.com/josephlewis42/gosed/core/vos"
)

// Ls implements a small UNIX ls command.
func Ls(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "ls [-1al] [FILE]...",
		Short: "List information about the FILEs (the current directory by default).",
	}

	opts := cmd.Flags()
	listAll := opts.Bool('a', "don't ignore entries starting with .")
	longListing := opts.Bool('l', "use a long listing format")
	onePerLine := opts.Bool('1', "list one file per line")

	var color ColorPrinter
	color.Init(opts, virtOS)

	return cmd.Run(virtOS, func() int {
		targets := opts.Args()
		if len(targets) == 0 {
			targets = []string{"."}
		}
		sort.Strings(targets)

		w := virtOS.Stdout()
		printEntries := func(entries []os.FileInfo) {
			switch {
			case *longListing:
				tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
				for _, fi := range entries {
					fmt.Fprintf(tw, "%s\t %d\t %s\t %s\n",
						fi.Mode().String(),
						fi.Size(),
						fi.ModTime().Format("Jan _2 15:04"),
						color.Sprintf(Dircolor(fi), "%s", fi.Name()))
				}
				tw.Flush()
			case *onePerLine || !virtOS.GetPTY().IsPTY:
				for _, fi := range entries {
					fmt.Fprintln(w, color.Sprintf(Dircolor(fi), "%s", fi.Name()))
				}
			case len(entries) > 0:
				var names []string
				for _, fi := range entries {
					names = append(names, color.Sprintf(Dircolor(fi), "%s", fi.Name()))
				}
				fmt.Fprintln(w, strings.Join(names, "  "))
			}
		}

		status := 0
		var files []os.FileInfo
		var dirs []string
		for _, target := range targets {
			fi, err := virtOS.Stat(target)
			switch {
			case err != nil:
				cmd.LogProgramError(virtOS, fmt.Errorf("cannot access %q: %s", target, describeErr(err)))
				status = 2
			case fi.IsDir():
				dirs = append(dirs, target)
			default:
				files = append(files, namedFileInfo{FileInfo: fi, name: target})
			}
		}

		printEntries(files)
		for i, dir := range dirs {
			entries, err := readDirSorted(virtOS, dir, *listAll)
			if err != nil {
				cmd.LogProgramError(virtOS, fmt.Errorf("cannot open directory %q: %s", dir, describeErr(err)))
				status = 2
				continue
			}

			if len(targets) > 1 {
				if i > 0 || len(files) > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s:\n", dir)
			}
			printEntries(entries)
		}

		return status
	})
}

// namedFileInfo reports the name a file was listed by rather than its base
// name.
type namedFileInfo struct {
	os.FileInfo
	name string
}

func (n namedFileInfo) Name() string {
	return n.name
}

func readDirSorted(virtOS vos.VOS, dir string, all bool) ([]os.FileInfo, error) {
	fd, err := virtOS.Open(dir)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	infos, err := fd.Readdir(-1)
	if err != nil {
		return nil, err
	}

	var out []os.FileInfo
	for _, fi := range infos {
		if all || !strings.HasPrefix(fi.Name(), ".") {
			out = append(out, fi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out, nil
}

type lsColorTest struct {
	color *fcolor.Color
	test  func(fileInfo os.FileInfo) bool
}

// Color listing comes from: https://askubuntu.com/a/884513
var dircolors = []lsColorTest{
	// Directories are bold blue.
	{color: ColorBoldBlue, test: os.FileInfo.IsDir},
	// Symlinks are bold cyan.
	{color: ColorBoldCyan, test: func(fi os.FileInfo) bool {
		return fi.Mode()&fs.ModeSymlink > 0
	}},
	// Executables are bold green.
	{color: ColorBoldGreen, test: func(fi os.FileInfo) bool {
		return fi.Mode().Perm()&0111 > 0
	}},
	// Sed scripts are bold red.
	{color: ColorBoldRed, test: func(fi os.FileInfo) bool {
		return path.Ext(fi.Name()) == ".sed"
	}},
}

// Dircolor picks the color a file is listed in.
func Dircolor(fileInfo os.FileInfo) *fcolor.Color {
	for _, dc := range dircolors {
		if dc.test(fileInfo) {
			return dc.color
		}
	}

	// Anything else defaults to white.
	return fcolor.New(fcolor.FgHiWhite)
}

var _ vos.ProcessFunc = Ls

func init() {
	addBinCmd("ls", Ls)
}
