package sed

import (
	"bufio"
	"io"
)

// Input is a named readable text source.
type Input struct {
	// Name is reported by the F command; "-" conventionally means stdin.
	Name   string
	Reader io.Reader
}

type line struct {
	text string
	// terminated is false only for a final line with no trailing separator.
	terminated bool
	// name of the input the line came from.
	name string
}

// lineReader reads separator-delimited lines from a sequence of inputs as if
// they were one stream. It only reads ahead when asked whether the stream is
// exhausted.
type lineReader struct {
	inputs []Input
	delim  byte

	next    int
	cur     *bufio.Reader
	curName string

	peeked  *line
	peekErr error
}

func newLineReader(delim byte, inputs []Input) *lineReader {
	return &lineReader{inputs: inputs, delim: delim}
}

// read returns the next line. ok is false once every input is exhausted.
func (r *lineReader) read() (l line, ok bool, err error) {
	if r.peeked != nil {
		l = *r.peeked
		r.peeked = nil
		return l, true, nil
	}
	if r.peekErr != nil {
		err, r.peekErr = r.peekErr, nil
		return line{}, false, err
	}
	return r.readRaw()
}

func (r *lineReader) readRaw() (line, bool, error) {
	for {
		if r.cur == nil {
			if r.next >= len(r.inputs) {
				return line{}, false, nil
			}
			in := r.inputs[r.next]
			r.next++
			r.cur = bufio.NewReader(in.Reader)
			r.curName = in.Name
		}

		text, err := r.cur.ReadString(r.delim)
		switch {
		case err == io.EOF:
			r.cur = nil
			if text == "" {
				continue
			}
			return line{text: text, name: r.curName}, true, nil
		case err != nil:
			r.cur = nil
			return line{}, false, &IOError{Op: "read", Path: r.curName, Err: err}
		default:
			return line{text: text[:len(text)-1], terminated: true, name: r.curName}, true, nil
		}
	}
}

// atEOF reports whether no lines remain, reading one line ahead if needed.
func (r *lineReader) atEOF() bool {
	if r.peeked != nil || r.peekErr != nil {
		return false
	}
	l, ok, err := r.readRaw()
	switch {
	case err != nil:
		// Surface the error on the next read.
		r.peekErr = err
		return false
	case !ok:
		return true
	default:
		r.peeked = &l
		return false
	}
}
