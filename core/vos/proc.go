package vos

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"sync/atomic"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by StartProcess when no process has the given name.
var ErrNotFound = exec.ErrNotFound

// Host is the machine processes share: one filesystem, one hostname, one
// terminal and one place events are recorded.
type Host struct {
	fs       VFS
	hostname string
	resolver ProcessResolver
	recorder EventRecorder
	pty      PTY
	lastPID  int32
}

// NewHost creates a host. A nil recorder discards events.
func NewHost(fs VFS, hostname string, resolver ProcessResolver, recorder EventRecorder) *Host {
	if recorder == nil {
		recorder = NopEventRecorder{}
	}
	return &Host{
		fs:       fs,
		hostname: hostname,
		resolver: resolver,
		recorder: recorder,
	}
}

// Hostname implements VOS.Hostname.
func (h *Host) Hostname() string {
	return h.hostname
}

// SetPTY implements VOS.SetPTY.
func (h *Host) SetPTY(pty PTY) {
	h.pty = pty
}

// GetPTY implements VOS.GetPTY.
func (h *Host) GetPTY() PTY {
	return h.pty
}

// NextPID gets a monotonically increasing PID.
func (h *Host) NextPID() int {
	return int(atomic.AddInt32(&h.lastPID, 1))
}

// InitProc creates the root process of the host. It does nothing when run
// but can start other processes.
func (h *Host) InitProc(files VIO, environ []string, dir string) *ProcOS {
	if files == nil {
		files = NewNullIO()
	}
	if dir == "" {
		dir = "/"
	}

	out := &ProcOS{
		Host:     h,
		VEnv:     NewMapEnvFromEnvList(environ),
		VIO:      files,
		ProcArgs: []string{"init"},
		Dir:      dir,
		Exec: func(VOS) int {
			return 0
		},
	}
	out.VFS = NewWorkingDirFs(h.fs, out.Getwd)
	return out
}

// ProcOS is a single process running on a Host.
type ProcOS struct {
	*Host

	VEnv
	VFS
	VIO

	// ProcArgs holds command line arguments, including the command as Args[0].
	ProcArgs []string
	// PID is the process ID of the process.
	PID int
	// Dir is the working directory of the process.
	Dir string
	// Exec is run by Run.
	Exec ProcessFunc
}

var (
	_ VOS              = (*ProcOS)(nil)
	_ afero.Lstater    = (*ProcOS)(nil)
	_ afero.Symlinker  = (*ProcOS)(nil)
	_ afero.LinkReader = (*ProcOS)(nil)
)

// Args implements VOS.Args.
func (p *ProcOS) Args() []string {
	return p.ProcArgs
}

// Getwd implements VOS.Getwd.
func (p *ProcOS) Getwd() (dir string, err error) {
	return p.Dir, nil
}

// Chdir implements VOS.Chdir.
func (p *ProcOS) Chdir(dir string) (err error) {
	if !path.IsAbs(dir) {
		dir = path.Join(p.Dir, dir)
	}
	dir = path.Clean(dir)

	stat, err := p.Stat(dir)
	switch {
	case err != nil:
		return fmt.Errorf("%s: %v", dir, err)
	case !stat.IsDir():
		return fmt.Errorf("%s: Not a directory", dir)
	default:
		p.Dir = dir
		return nil
	}
}

// LstatIfPossible implements afero.Lstater.
func (p *ProcOS) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	if lstater, ok := p.VFS.(afero.Lstater); ok {
		return lstater.LstatIfPossible(name)
	}
	fi, err := p.Stat(name)
	return fi, false, err
}

// SymlinkIfPossible implements afero.Linker.
func (p *ProcOS) SymlinkIfPossible(oldname, newname string) error {
	if linker, ok := p.VFS.(afero.Linker); ok {
		return linker.SymlinkIfPossible(oldname, newname)
	}
	return &os.LinkError{Op: FsOpSymlink, Old: oldname, New: newname, Err: afero.ErrNoSymlink}
}

// ReadlinkIfPossible implements afero.LinkReader.
func (p *ProcOS) ReadlinkIfPossible(name string) (string, error) {
	if reader, ok := p.VFS.(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(name)
	}
	return "", &os.PathError{Op: FsOpReadlink, Path: name, Err: afero.ErrNoReadlink}
}

// LogEvent implements VOS.LogEvent. Every event carries the process'
// arguments and PID.
func (p *ProcOS) LogEvent(event string, fields map[string]interface{}) {
	out := map[string]interface{}{
		"pid":  p.PID,
		"argv": stringsToInterfaces(p.ProcArgs),
	}
	for k, v := range fields {
		out[k] = v
	}
	// Failing to log shouldn't fail the process.
	_ = p.recorder.Record(event, out)
}

// LogInvalidInvocation implements VOS.LogInvalidInvocation.
func (p *ProcOS) LogInvalidInvocation(err error) {
	p.LogEvent("invalid_invocation", map[string]interface{}{
		"error": err.Error(),
	})
}

// StartProcess implements VOS.StartProcess.
func (p *ProcOS) StartProcess(name string, argv []string, attr *ProcAttr) (VOS, error) {
	if attr == nil {
		attr = &ProcAttr{}
	}
	if argv == nil {
		argv = []string{name}
	}

	proc := p.resolver(name)
	if proc == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	var env VEnv
	if attr.Env == nil {
		env = NewMapEnvFromEnvList(p.Environ())
	} else {
		env = NewMapEnvFromEnvList(attr.Env)
	}

	out := &ProcOS{
		Host:     p.Host,
		VEnv:     env,
		ProcArgs: argv,
		PID:      p.NextPID(),
		Dir:      p.Dir,
		Exec:     proc,
	}
	out.VFS = NewWorkingDirFs(p.fs, out.Getwd)

	if attr.Files == nil {
		out.VIO = NewNullIO()
	} else {
		out.VIO = attr.Files
	}

	if attr.Dir != "" {
		if err := out.Chdir(attr.Dir); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Run implements VOS.Run.
func (p *ProcOS) Run() int {
	p.LogEvent("run_command", map[string]interface{}{
		"dir": p.Dir,
	})
	return p.Exec(p)
}

func stringsToInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// NopEventRecorder discards events.
type NopEventRecorder struct{}

var _ EventRecorder = NopEventRecorder{}

// Record implements EventRecorder.Record.
func (NopEventRecorder) Record(string, map[string]interface{}) error {
	return nil
}
