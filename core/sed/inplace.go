package sed

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/gosed/third_party/realpath"
	"github.com/spf13/afero"
)

// FileEdit describes the in-place edit of one file.
type FileEdit struct {
	// Path is the path as given.
	Path string
	// Target is the file that was rewritten, which differs from Path when
	// a symlink was followed.
	Target string
	// Backup is the path of the backup copy, empty if none was made.
	Backup string
	// Err is set if the file couldn't be read; the file is left untouched.
	Err error
}

// InPlaceResult summarizes an EditInPlace call.
type InPlaceResult struct {
	Edits    []FileEdit
	ExitCode int
}

// EditInPlace runs script over each file and replaces the file with the
// output. All files share one engine, so the hold space and write files
// carry over and a q or Q stops the remaining files. Each file's output is
// computed in full before anything is written.
//
// Files that can't be read are recorded in the result and skipped; any
// other error aborts the call.
func EditInPlace(script *Script, opts Options, paths ...string) (*InPlaceResult, error) {
	eng, err := New(script, opts)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	fs := opts.fs()
	result := &InPlaceResult{}
	for _, p := range paths {
		if eng.Quit() {
			break
		}

		edit, err := editFile(eng, fs, p)
		if err != nil {
			return result, err
		}
		result.Edits = append(result.Edits, edit)
	}

	result.ExitCode = eng.ExitCode()
	return result, eng.Close()
}

func editFile(eng *Engine, fs afero.Fs, name string) (FileEdit, error) {
	edit := FileEdit{Path: name, Target: name}

	if eng.opts.FollowSymlinks {
		target, err := realpath.Realpath(&fsOS{fs: fs, getwd: eng.opts.Getwd}, name)
		if err != nil {
			edit.Err = &IOError{Op: "couldn't follow symlink", Path: name, Err: err}
			return edit, nil
		}
		edit.Target = target
	}

	info, err := fs.Stat(edit.Target)
	switch {
	case err != nil:
		edit.Err = &IOError{Op: "can't read", Path: name, Err: err}
		return edit, nil
	case !info.Mode().IsRegular():
		edit.Err = &IOError{Op: "couldn't edit", Path: name, Err: errors.New("not a regular file")}
		return edit, nil
	}

	original, err := afero.ReadFile(fs, edit.Target)
	if err != nil {
		edit.Err = &IOError{Op: "can't read", Path: name, Err: err}
		return edit, nil
	}

	var buf bytes.Buffer
	out := eng.Run(Input{Name: name, Reader: bytes.NewReader(original)})
	for out.Scan() {
		buf.WriteString(out.Text())
	}
	if err := out.Err(); err != nil {
		return edit, err
	}

	if suffix := eng.opts.BackupSuffix; suffix != "" {
		edit.Backup = backupPath(edit.Target, suffix)
		if err := afero.WriteFile(fs, edit.Backup, original, info.Mode().Perm()); err != nil {
			return edit, &IOError{Op: "couldn't write backup", Path: edit.Backup, Err: err}
		}
	}

	if err := replaceFile(fs, edit.Target, buf.Bytes(), info.Mode().Perm()); err != nil {
		return edit, err
	}
	return edit, nil
}

// backupPath returns where the backup of name goes. Every * in suffix is
// replaced by the file's base name; otherwise the suffix is appended. A
// result without a slash lives next to the file.
func backupPath(name, suffix string) string {
	dir, base := filepath.Split(name)
	if !strings.Contains(suffix, "*") {
		return name + suffix
	}

	backup := strings.ReplaceAll(suffix, "*", base)
	if strings.Contains(backup, "/") {
		return backup
	}
	return filepath.Join(dir, backup)
}

// replaceFile writes content to a temporary sibling of name and renames it
// over name, so a failure never leaves name half written.
func replaceFile(fs afero.Fs, name string, content []byte, perm os.FileMode) error {
	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}

	tmp, err := afero.TempFile(fs, dir, "sed"+base)
	if err != nil {
		return &IOError{Op: "couldn't open temporary file", Path: name, Err: err}
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = fs.Chmod(tmpName, perm)
	}
	if err == nil {
		err = fs.Rename(tmpName, name)
	}
	if err != nil {
		fs.Remove(tmpName)
		return &IOError{Op: "couldn't edit", Path: name, Err: err}
	}
	return nil
}

// fsOS adapts an afero.Fs to the realpath package. Filesystems that don't
// support symlinks resolve every path to itself.
type fsOS struct {
	fs    afero.Fs
	getwd func() (string, error)
}

var _ realpath.OS = (*fsOS)(nil)

func (o *fsOS) Getwd() (string, error) {
	if o.getwd != nil {
		return o.getwd()
	}
	if _, ok := o.fs.(*afero.OsFs); ok {
		return os.Getwd()
	}
	return "/", nil
}

func (o *fsOS) Lstat(name string) (os.FileInfo, error) {
	if lstater, ok := o.fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(name)
		return fi, err
	}
	return o.fs.Stat(name)
}

func (o *fsOS) Readlink(name string) (string, error) {
	if reader, ok := o.fs.(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(name)
	}
	return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
}
