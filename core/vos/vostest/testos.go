// Package vostest runs commands against a deterministic in-memory OS.
package vostest

import (
	"bytes"
	"io"

	"github.com/josephlewis42/gosed/core/vos"
	"github.com/spf13/afero"
)

// Hostname is the hostname of every test OS.
const Hostname = "vostest"

// SingleProcessResolver resolves every name to process.
func SingleProcessResolver(process vos.ProcessFunc) vos.ProcessResolver {
	return func(string) vos.ProcessFunc {
		return process
	}
}

// NewDeterministicOS creates the init process of a fresh in-memory host.
func NewDeterministicOS(fs vos.VFS, resolver vos.ProcessResolver, recorder vos.EventRecorder) *vos.ProcOS {
	host := vos.NewHost(fs, Hostname, resolver, recorder)
	host.SetPTY(vos.PTY{})
	return host.InitProc(nil, []string{"HOME=/", "PATH=/bin:/usr/bin"}, "/")
}

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Process function
	Process vos.ProcessFunc
	// Resolver finds processes started by Process. Argv[0] always resolves to
	// Process. If nil, every name resolves to Process.
	Resolver vos.ProcessResolver
	// Process arguments, the first argument should be the process name.
	Argv []string
	// If Dir is non-empty, the child changes into the directory before
	// creating the process.
	Dir string
	// If Env is non-empty, it gives the environment variables for the
	// new process in the form returned by Environ.
	Env []string
	// PTY is the terminal the process sees.
	PTY vos.PTY

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int

	// VOS is the filesystem the process runs against, it's shared between
	// runs so files can be inspected afterwards.
	VOS vos.VFS
	// Events holds the events logged by the process.
	Events []Event

	// Setup is called with the process before it runs.
	Setup func(vos.VOS) error
}

// Event is a recorded event.
type Event struct {
	Name   string
	Fields map[string]interface{}
}

// Command creates a command that runs process with the given arguments.
func Command(process vos.ProcessFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Process: process,
		Argv:    append([]string{name}, arg...),
		VOS:     afero.NewMemMapFs(),
	}
}

// CombinedOutput runs the command and returns stdout and stderr
// interleaved.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	err := c.Run()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Output runs the command and returns its stdout.
func (c *Cmd) Output() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf

	if err := c.Run(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the command and waits for it to complete.
func (c *Cmd) Run() error {
	c.Events = nil
	initProc := NewDeterministicOS(c.VOS, c.resolver(), c)
	initProc.SetPTY(c.PTY)

	stdin := c.Stdin
	if stdin == nil {
		stdin = &bytes.Buffer{}
	}

	runner, err := initProc.StartProcess(c.Argv[0], c.Argv, &vos.ProcAttr{
		Dir:   c.Dir,
		Env:   c.Env,
		Files: vos.NewVIOAdapter(stdin, c.Stdout, c.Stderr),
	})
	if err != nil {
		return err
	}

	if c.Setup != nil {
		if err := c.Setup(runner); err != nil {
			return err
		}
	}

	c.ExitStatus = runner.Run()
	return nil
}

func (c *Cmd) resolver() vos.ProcessResolver {
	if c.Resolver == nil {
		return SingleProcessResolver(c.Process)
	}
	return func(name string) vos.ProcessFunc {
		if name == c.Argv[0] {
			return c.Process
		}
		return c.Resolver(name)
	}
}

// Record implements vos.EventRecorder.
func (c *Cmd) Record(event string, fields map[string]interface{}) error {
	c.Events = append(c.Events, Event{Name: event, Fields: fields})
	return nil
}

// EventNames returns the names of the recorded events in order.
func (c *Cmd) EventNames() []string {
	var out []string
	for _, e := range c.Events {
		out = append(out, e.Name)
	}
	return out
}
