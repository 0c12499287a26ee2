package sed

import (
	"bufio"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/spf13/afero"
)

const (
	devStdout = "/dev/stdout"
	devStderr = "/dev/stderr"
)

// fileTable owns the side files a script reads and writes. Write targets get
// one handle each for the life of the engine.
type fileTable struct {
	fs    afero.Fs
	delim byte
	// stdout receives writes to /dev/stdout. If nil they go to the run's
	// output instead.
	stdout io.Writer
	stderr io.Writer

	writers map[string]io.Writer
	readers map[string]*bufio.Reader
	closers []io.Closer
}

func newFileTable(fs afero.Fs, delim byte, stdout, stderr io.Writer) *fileTable {
	if stderr == nil {
		stderr = ioutil.Discard
	}
	return &fileTable{
		fs:      fs,
		delim:   delim,
		stdout:  stdout,
		stderr:  stderr,
		writers: make(map[string]io.Writer),
		readers: make(map[string]*bufio.Reader),
	}
}

// openWriters opens, truncating, every file the script writes to.
func (t *fileTable) openWriters(cmds []Command) error {
	for _, cmd := range cmds {
		var name string
		switch {
		case cmd.Kind == KindWriteFile || cmd.Kind == KindWriteFirstLine:
			name = cmd.Filename
		case cmd.Kind == KindSubstitute && cmd.Subst.WriteFile != "":
			name = cmd.Subst.WriteFile
		default:
			continue
		}

		if _, ok := t.writers[name]; ok {
			continue
		}
		if name == devStdout {
			if t.stdout != nil {
				t.writers[name] = t.stdout
			}
			continue
		}
		if name == devStderr {
			t.writers[name] = t.stderr
			continue
		}

		fd, err := t.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			return &IOError{Op: "couldn't open file", Path: name, Err: err}
		}
		t.writers[name] = fd
		t.closers = append(t.closers, fd)
	}
	return nil
}

func (t *fileTable) write(name, text string) error {
	w, ok := t.writers[name]
	if !ok {
		return &IOError{Op: "write", Path: name, Err: os.ErrClosed}
	}
	if _, err := io.WriteString(w, text+string(t.delim)); err != nil {
		return &IOError{Op: "couldn't write to", Path: name, Err: err}
	}
	return nil
}

// readFile returns the whole file, a missing or unreadable file reads as
// nothing.
func (t *fileTable) readFile(name string) (string, bool) {
	content, err := afero.ReadFile(t.fs, name)
	if err != nil || len(content) == 0 {
		return "", false
	}
	return strings.TrimSuffix(string(content), string(t.delim)), true
}

// readLine returns the next line of the named file. Each file is opened on
// first use and read sequentially across calls.
func (t *fileTable) readLine(name string) (string, bool) {
	r, ok := t.readers[name]
	if !ok {
		fd, err := t.fs.Open(name)
		if err != nil {
			t.readers[name] = nil
			return "", false
		}
		t.closers = append(t.closers, fd)
		r = bufio.NewReader(fd)
		t.readers[name] = r
	}
	if r == nil {
		return "", false
	}

	text, err := r.ReadString(t.delim)
	if text == "" && err != nil {
		return "", false
	}
	return strings.TrimSuffix(text, string(t.delim)), true
}

// Close closes every file handle, returning the first error.
func (t *fileTable) Close() error {
	var firstErr error
	for _, c := range t.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.closers = nil
	t.writers = make(map[string]io.Writer)
	t.readers = make(map[string]*bufio.Reader)
	return firstErr
}
