// Package vos provides the virtual process environment commands run in: their
// arguments, standard streams, environment, filesystem and working directory.
//
// Commands only talk to the outside world through a VOS so the same code can
// run against the host or an in-memory sandbox.
package vos

import (
	"io"

	"github.com/spf13/afero"
)

// VEnv represents a virtual environment.
type VEnv interface {
	// Setenv sets the value of the environment variable named by the key.
	Setenv(key, value string) error

	// Unsetenv unsets a single environment variable.
	Unsetenv(key string) error

	// LookupEnv retrieves the value of the environment variable named by the key.
	// If the variable is present in the environment the value (which may be
	// empty) is returned and the boolean is true.
	LookupEnv(key string) (string, bool)

	// Getenv retrieves the value of the environment variable named by the key.
	// It returns the value, which will be empty if the variable is not present.
	Getenv(key string) string

	// Environ returns a copy of strings representing the environment, in the
	// form "key=value".
	Environ() []string
}

// VIO holds the standard streams of a process.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

// VFS implements a virtual filesystem. Relative paths are resolved against
// the process' working directory.
type VFS = afero.Fs

// VProc holds information about the running process.
type VProc interface {
	// Args returns the arguments to the current process, starting with the
	// program name.
	Args() []string

	// Getwd returns a rooted path name corresponding to the current directory.
	Getwd() (dir string, err error)

	// Chdir changes the current directory.
	Chdir(dir string) error
}

// PTY describes the terminal connected to the process, if any.
type PTY struct {
	Width  int
	Height int
	Term   string
	IsPTY  bool
}

// VOS provides a virtual OS interface.
type VOS interface {
	VEnv
	VIO
	VProc
	VFS

	// Hostname returns the host name shown to the user.
	Hostname() string

	SetPTY(PTY)
	GetPTY() PTY

	// LogInvalidInvocation records that the process was called incorrectly.
	LogInvalidInvocation(err error)

	// LogEvent records a structured event about the process.
	LogEvent(event string, fields map[string]interface{})

	// StartProcess creates a child process. The child doesn't run until Run
	// is called.
	StartProcess(name string, argv []string, attr *ProcAttr) (VOS, error)

	// Run executes the process and returns its exit status.
	Run() int
}

// ProcessFunc is a "process" that can be run.
type ProcessFunc func(VOS) int

// ProcessResolver looks up a process by name, it returns nil if no process
// was found.
type ProcessResolver func(name string) ProcessFunc

// EventRecorder receives the structured events processes log.
type EventRecorder interface {
	Record(event string, fields map[string]interface{}) error
}

// ProcAttr holds the attributes of a new process.
type ProcAttr struct {
	// If Dir is non-empty, the child changes into the directory before
	// creating the process.
	Dir string
	// If Env is non-nil, it gives the environment variables for the
	// new process in the form returned by Environ.
	// If it is nil, the parent's environment is copied.
	Env []string
	// Files specifies the standard streams of the new process. If nil the
	// process gets a null device.
	Files VIO
}
