//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"procsig/process"

	ps "github.com/mitchellh/go-ps"
)

// WindowsProcessFinder implements the process.ProcessFinder interface.
// Windows exposes no per-process command line without reading the PEB, so the
// executable name stands in for the first command line token.
type WindowsProcessFinder struct {
	list    func() ([]ps.Process, error)
	selfPID int
}

var _ process.ProcessFinder = (*WindowsProcessFinder)(nil)

func NewProcessFinder() *WindowsProcessFinder {
	return &WindowsProcessFinder{
		list:    ps.Processes,
		selfPID: os.Getpid(),
	}
}

// FindProcessByName returns the lowest PID whose executable name contains name
func (f *WindowsProcessFinder) FindProcessByName(name string) (*process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	procs, err := f.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var best *process.ProcessInfo
	for _, p := range procs {
		if p.Pid() == f.selfPID || !strings.Contains(p.Executable(), name) {
			continue
		}
		if best == nil || process.ProcessID(p.Pid()) < best.PID {
			best = &process.ProcessInfo{
				PID:     process.ProcessID(p.Pid()),
				Name:    p.Executable(),
				Cmdline: []string{p.Executable()},
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no process with name '%s'", process.ErrProcessNotFound, name)
	}
	return best, nil
}

// OpenProcessByName finds a process by name and snapshots it
func OpenProcessByName(name string, opts ...process.Option) (*WindowsProcess, error) {
	info, err := NewProcessFinder().FindProcessByName(name)
	if err != nil {
		return nil, err
	}

	p, err := NewWithPID(info.PID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s (pid %d): %w", name, info.PID, err)
	}
	return p, nil
}
