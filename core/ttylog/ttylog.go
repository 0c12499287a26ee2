// Package ttylog records terminal sessions and plays them back.
package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/gosed/core/vos"
)

// FD identifies the stream a chunk of IO happened on.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

// Entry is a chunk of terminal IO.
type Entry struct {
	TimestampMicros int64
	FD              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(e *Entry) error {
		once.Do(func() {
			prevTimeMicros = e.TimestampMicros
		})

		delta := e.TimestampMicros - prevTimeMicros
		prevTimeMicros = e.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(e)
	}
}

// NewClientOutput writes stdout and stderr to the given writer.
func NewClientOutput(w io.Writer) LogSink {
	return func(e *Entry) error {
		if e.FD == FDStdin {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) error {
	for {
		e, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(e); err != nil {
			return err
		}
	}
}

// Recorder wraps the standard streams of a process, sending everything read
// or written to a LogSink.
type Recorder struct {
	*vos.VIOAdapter

	// Now is the time source for entries, defaults to time.Now.
	Now func() time.Time

	mutex  sync.Mutex
	output LogSink
}

var _ vos.VIO = (*Recorder)(nil)

// NewRecorder creates a recorder that forwards all IO on toWrap to output.
func NewRecorder(toWrap vos.VIO, output LogSink) *Recorder {
	recorder := &Recorder{
		Now:    time.Now,
		output: output,
	}

	recorder.VIOAdapter = vos.NewVIOAdapter(
		&recorderReadCloser{fd: FDStdin, r: recorder, wrapped: toWrap.Stdin()},
		&recorderWriteCloser{fd: FDStdout, r: recorder, wrapped: toWrap.Stdout()},
		&recorderWriteCloser{fd: FDStderr, r: recorder, wrapped: toWrap.Stderr()},
	)

	return recorder
}

func (r *Recorder) recordIO(fd FD, data []byte, dest func([]byte) (int, error)) (int, error) {
	eventTime := r.Now()
	n, err := dest(data)
	if n > 0 {
		r.mutex.Lock()
		logErr := r.output(&Entry{
			TimestampMicros: eventTime.UnixMicro(),
			FD:              fd,
			Data:            append([]byte(nil), data[:n]...),
		})
		r.mutex.Unlock()
		if logErr != nil {
			log.Print(logErr)
		}
	}
	return n, err
}

type recorderReadCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.ReadCloser
}

var _ io.ReadCloser = (*recorderReadCloser)(nil)

func (rc *recorderReadCloser) Read(p []byte) (int, error) {
	return rc.r.recordIO(rc.fd, p, rc.wrapped.Read)
}

func (rc *recorderReadCloser) Close() error {
	return rc.wrapped.Close()
}

type recorderWriteCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.WriteCloser
}

var _ io.WriteCloser = (*recorderWriteCloser)(nil)

func (rc *recorderWriteCloser) Write(p []byte) (int, error) {
	return rc.r.recordIO(rc.fd, p, rc.wrapped.Write)
}

func (rc *recorderWriteCloser) Close() error {
	return rc.wrapped.Close()
}
