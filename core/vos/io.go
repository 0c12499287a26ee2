package vos

import (
	"io"
	"os"
)

// VIOAdapter implements VIO over plain readers and writers.
type VIOAdapter struct {
	IStdin  io.ReadCloser
	IStdout io.WriteCloser
	IStderr io.WriteCloser
}

// NewVIOAdapter creates a VIO from the given streams. Closing a stream that
// isn't an io.Closer does nothing; a nil stream behaves like /dev/null.
func NewVIOAdapter(stdin io.Reader, stdout, stderr io.Writer) *VIOAdapter {
	return &VIOAdapter{
		IStdin:  toReadCloserOrNull(stdin),
		IStdout: toWriteCloserOrNull(stdout),
		IStderr: toWriteCloserOrNull(stderr),
	}
}

// NewNullIO creates a /dev/null style I/O: reads are always at EOF and
// writes are discarded.
func NewNullIO() VIO {
	return NewVIOAdapter(nil, nil, nil)
}

var _ VIO = (*VIOAdapter)(nil)

func (pr *VIOAdapter) Stdin() io.ReadCloser {
	return pr.IStdin
}

func (pr *VIOAdapter) Stdout() io.WriteCloser {
	return pr.IStdout
}

func (pr *VIOAdapter) Stderr() io.WriteCloser {
	return pr.IStderr
}

func toWriteCloserOrNull(w io.Writer) io.WriteCloser {
	switch v := w.(type) {
	case nil:
		return &devNull{}
	case *os.File:
		// Never let a process close the host's streams.
		return nopWriteCloser{v}
	case io.WriteCloser:
		return v
	default:
		return nopWriteCloser{w}
	}
}

func toReadCloserOrNull(r io.Reader) io.ReadCloser {
	switch v := r.(type) {
	case nil:
		return &devNull{}
	case *os.File:
		return io.NopCloser(v)
	case io.ReadCloser:
		return v
	default:
		return io.NopCloser(r)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// devNull is always at EOF and discards writes.
type devNull struct{}

var _ io.ReadCloser = (*devNull)(nil)
var _ io.WriteCloser = (*devNull)(nil)

func (*devNull) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (*devNull) Close() error {
	return nil
}

func (*devNull) Write(b []byte) (int, error) {
	return len(b), nil
}
